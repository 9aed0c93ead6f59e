// File: roundtrip/responder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Responder reflects every request back on the response channel with the
// request's own source timestamp. It keeps no statistics. A disposal marker
// on the request channel stops it.

package roundtrip

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/control"
	"github.com/momentics/hioload-rtt/internal/concurrency"
	"github.com/momentics/hioload-rtt/pool"
)

// State is the Responder lifecycle.
type State int32

const (
	StateWaiting State = iota
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateProcessing:
		return "PROCESSING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ResponderConfig parameterizes a Responder.
type ResponderConfig struct {
	Payload  int // expected payload, used to size take slots
	Mode     api.DeliveryMode
	CPU      int // pinned CPU, -1 = not pinned
	Tunables control.Tunables
}

// Responder is the echo side of a run.
type Responder struct {
	cfg     ResponderConfig
	tr      api.Transport
	log     *zap.Logger
	metrics *control.Metrics

	stop     *concurrency.Flag
	ws       *concurrency.Waitset
	delivery delivery

	reader api.Reader
	writer api.Writer
	batch  *pool.SampleBatch

	state atomic.Int32
}

// NewResponder creates a Responder; stop is its cancellation flag and is
// also raised when a termination marker arrives.
func NewResponder(cfg ResponderConfig, tr api.Transport, stop *concurrency.Flag,
	log *zap.Logger, metrics *control.Metrics) *Responder {
	return &Responder{
		cfg:      cfg,
		tr:       tr,
		log:      log.Named("responder"),
		metrics:  metrics,
		stop:     stop,
		ws:       concurrency.NewWaitset(),
		delivery: newDelivery(cfg.Mode),
	}
}

// Open creates the endpoints.
func (r *Responder) Open() error {
	t := r.cfg.Tunables
	var err error
	if r.reader, err = r.tr.CreateReader(t.RequestChannel, t.QoS()); err != nil {
		return transportError("create reader", t.RequestChannel, err)
	}
	if r.writer, err = r.tr.CreateWriter(t.ResponseChannel, t.QoS()); err != nil {
		return transportError("create writer", t.ResponseChannel, err)
	}
	r.batch = pool.NewSampleBatch(t.BatchSize, slotCapacity(r.cfg.Payload, t.BatchSize))
	return r.ws.Attach(r.stop)
}

// Run echoes requests until stopped or terminated.
func (r *Responder) Run() error {
	defer r.state.Store(int32(StateStopped))

	if r.cfg.CPU >= 0 {
		if err := concurrency.PinCurrentThread(r.cfg.CPU); err != nil {
			r.log.Warn("cpu pinning failed", zap.Int("cpu", r.cfg.CPU), zap.Error(err))
		} else {
			defer func() { _ = concurrency.UnpinCurrentThread() }()
		}
	}

	if err := r.delivery.arm(r.reader, r.ws, r.onData); err != nil {
		return transportError("arm delivery", r.cfg.Tunables.RequestChannel, err)
	}
	defer func() { _ = r.delivery.disarm() }()

	r.log.Info("waiting for samples to send back")
	for !r.stop.Triggered() {
		n, err := r.ws.Wait(r.cfg.Tunables.WaitTimeout)
		if err != nil {
			return transportError("wait", r.cfg.Tunables.RequestChannel, err)
		}
		if n == 0 {
			continue
		}
		if err := r.delivery.wake(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Responder) onData() error {
	if r.state.Load() == int32(StateStopped) {
		return nil
	}
	r.state.Store(int32(StateProcessing))

	samples, infos := r.batch.Samples(), r.batch.Infos()
	n, err := r.reader.Take(samples, infos)
	if err != nil {
		return transportError("take", r.cfg.Tunables.RequestChannel, err)
	}
	for i := 0; i < n; i++ {
		if infos[i].State == api.InstanceDisposed {
			r.log.Info("received termination request")
			r.metrics.Terminations.Inc()
			r.state.Store(int32(StateStopped))
			r.stop.Set()
			return nil
		}
		if !infos[i].ValidData {
			continue
		}
		if err := r.writer.Publish(&samples[i], infos[i].SourceTimestamp); err != nil {
			return transportError("publish", r.cfg.Tunables.ResponseChannel, err)
		}
		r.metrics.Echoes.Inc()
	}
	r.state.Store(int32(StateWaiting))
	return nil
}

// State returns the current lifecycle state.
func (r *Responder) State() State {
	return State(r.state.Load())
}

// Stop requests the Responder to end. Safe from any goroutine.
func (r *Responder) Stop() {
	r.stop.Set()
}

// Close releases the endpoints and buffers.
func (r *Responder) Close() error {
	_ = r.ws.Close()
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
	if r.batch != nil {
		r.batch.Release()
	}
	return nil
}
