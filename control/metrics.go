// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for the round-trip workers. Each run owns a private
// registry so concurrent runs (and tests) never collide on metric names.

package control

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the counters and gauges updated by the workers.
type Metrics struct {
	registry *prometheus.Registry

	RoundTrips     prometheus.Counter
	Echoes         prometheus.Counter
	WarmUpReplies  prometheus.Counter
	Terminations   prometheus.Counter
	LatencyMin     prometheus.Gauge
	LatencyMax     prometheus.Gauge
	LatencyAverage prometheus.Gauge
}

// NewMetrics creates and registers the harness metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RoundTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtt_round_trips_total",
			Help: "Recorded round trips.",
		}),
		Echoes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtt_echoes_total",
			Help: "Samples reflected by the responder.",
		}),
		WarmUpReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtt_warmup_responses_total",
			Help: "Responses discarded during warm-up.",
		}),
		Terminations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtt_terminations_total",
			Help: "Termination markers received by the responder.",
		}),
		LatencyMin: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtt_latency_min_microseconds",
			Help: "Minimum one-way latency of the last run.",
		}),
		LatencyMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtt_latency_max_microseconds",
			Help: "Maximum one-way latency of the last run.",
		}),
		LatencyAverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtt_latency_avg_microseconds",
			Help: "Average one-way latency of the last run.",
		}),
	}
	m.registry.MustRegister(
		m.RoundTrips, m.Echoes, m.WarmUpReplies, m.Terminations,
		m.LatencyMin, m.LatencyMax, m.LatencyAverage,
	)
	return m
}

// RegisterGaugeFunc exposes fn as a gauge sampled at scrape time.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, fn))
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}

// Serve exposes /metrics on addr until ctx is done. It returns once the
// listener is bound; serve errors are logged.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics listener failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}
