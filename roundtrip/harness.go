// File: roundtrip/harness.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Harness wires one Initiator and one Responder to a transport and runs them
// as two independent goroutines. Endpoints are opened before either worker
// starts, so no request is published before its reader exists.

package roundtrip

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/control"
	"github.com/momentics/hioload-rtt/internal/concurrency"
	"github.com/momentics/hioload-rtt/report"
	"github.com/momentics/hioload-rtt/stats"
)

// Worker CPUs used with pinning enabled.
const (
	initiatorCPU = 0
	responderCPU = 1
)

// Harness runs a single measurement or quit request. It is single use.
type Harness struct {
	cfg     *control.RunConfig
	tr      api.Transport
	log     *zap.Logger
	metrics *control.Metrics

	initStop *concurrency.Flag
	respStop *concurrency.Flag

	// OnRecord is forwarded to the Initiator.
	OnRecord func(count int)

	responderState State
	summary        *stats.Summary
}

// NewHarness creates a harness for cfg over tr.
func NewHarness(cfg *control.RunConfig, tr api.Transport, log *zap.Logger, metrics *control.Metrics) *Harness {
	return &Harness{
		cfg:      cfg,
		tr:       tr,
		log:      log.Named("harness"),
		metrics:  metrics,
		initStop: concurrency.NewFlag(),
		respStop: concurrency.NewFlag(),
	}
}

// Stop requests both workers to end. The Initiator still exports what it
// recorded.
func (h *Harness) Stop() {
	h.initStop.Set()
	h.respStop.Set()
}

// Run executes a measurement: header, both workers, export and the optional
// summary and requirement checks. A failed requirement yields
// api.ErrRequirementsFailed after every output file is written.
func (h *Harness) Run(ctx context.Context) error {
	cfg := h.cfg
	if cfg.PayloadSize < 0 || cfg.PayloadSize > api.MaxPayloadSize {
		return api.NewError(api.ErrCodeConfiguration, "payload size out of range").
			WithContext("payload", cfg.PayloadSize)
	}
	if err := report.WriteHeader(cfg.OutputPath); err != nil {
		return err
	}
	h.log.Info("round trip run",
		zap.Int("payload", cfg.PayloadSize),
		zap.Uint64("samples", cfg.Samples),
		zap.Duration("timeout", cfg.Timeout),
		zap.Stringer("mode", cfg.Mode),
		zap.String("output", cfg.OutputPath),
	)

	initCPU, respCPU := -1, -1
	if cfg.Pin {
		initCPU, respCPU = initiatorCPU, responderCPU
	}
	resp := NewResponder(ResponderConfig{
		Payload:  cfg.PayloadSize,
		Mode:     cfg.Mode,
		CPU:      respCPU,
		Tunables: cfg.Tunables,
	}, h.tr, h.respStop, h.log, h.metrics)
	defer resp.Close()

	in := NewInitiator(InitiatorConfig{
		Payload:    cfg.PayloadSize,
		Samples:    cfg.Samples,
		Timeout:    cfg.Timeout,
		Mode:       cfg.Mode,
		OutputPath: cfg.OutputPath,
		CPU:        initCPU,
		Tunables:   cfg.Tunables,
		OnRecord:   h.OnRecord,
	}, h.tr, h.initStop, h.log, h.metrics)
	defer in.Close()

	if err := resp.Open(); err != nil {
		return err
	}
	if err := in.Open(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		h.Stop()
	}()
	g.Go(func() error {
		if err := resp.Run(); err != nil {
			h.log.Error("responder failed", zap.Error(err))
			return fmt.Errorf("responder: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer resp.Stop()
		if err := in.Run(); err != nil {
			h.log.Error("initiator failed", zap.Error(err))
			return fmt.Errorf("initiator: %w", err)
		}
		return nil
	})
	err := g.Wait()
	h.responderState = resp.State()
	if err != nil {
		return err
	}
	return h.postProcess(in.Stats())
}

func (h *Harness) postProcess(ts *stats.TimeStats) error {
	cfg := h.cfg
	if cfg.SummaryPath == "" && !cfg.Requirements.Enabled() {
		return nil
	}
	s, err := stats.SummarizeHistory(cfg.PayloadSize, ts)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	h.summary = &s
	if cfg.SummaryPath != "" {
		if err := report.WriteSummary(cfg.SummaryPath, s); err != nil {
			return err
		}
		h.log.Info("summary generated", zap.String("path", cfg.SummaryPath))
	}
	if !cfg.Requirements.Enabled() {
		return nil
	}

	results, ok := stats.Check(cfg.Requirements, s)
	for _, c := range results {
		h.log.Info("requirement check",
			zap.String("check", c.Check),
			zap.Float64("requirement", c.Requirement),
			zap.Float64("experiment", c.Experiment),
			zap.String("status", c.Status))
	}
	if cfg.ChecksPath != "" {
		if err := report.WriteChecks(cfg.ChecksPath, results); err != nil {
			return err
		}
	}
	if !ok {
		return api.ErrRequirementsFailed
	}
	return nil
}

// Quit publishes a termination marker on the request channel. The
// Responder is run for the invocation so the marker is consumed; Quit
// returns once it has stopped.
func (h *Harness) Quit(ctx context.Context) error {
	cfg := h.cfg
	resp := NewResponder(ResponderConfig{
		Mode:     cfg.Mode,
		CPU:      -1,
		Tunables: cfg.Tunables,
	}, h.tr, h.respStop, h.log, h.metrics)
	defer resp.Close()
	if err := resp.Open(); err != nil {
		return err
	}

	w, err := h.tr.CreateWriter(cfg.RequestChannel, cfg.QoS())
	if err != nil {
		return transportError("create writer", cfg.RequestChannel, err)
	}
	defer w.Close()

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		resp.Stop()
	}()
	g.Go(resp.Run)
	g.Go(func() error {
		h.log.Info("sending termination request")
		if err := w.Dispose(); err != nil {
			resp.Stop()
			return transportError("dispose", cfg.RequestChannel, err)
		}
		return nil
	})
	err = g.Wait()
	h.responderState = resp.State()
	return err
}

// Summary returns the summary computed by the last Run, if any.
func (h *Harness) Summary() *stats.Summary {
	return h.summary
}
