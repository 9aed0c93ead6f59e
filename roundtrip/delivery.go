// File: roundtrip/delivery.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package roundtrip

import (
	"sync/atomic"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/internal/concurrency"
)

// handler takes available samples from the reader and processes them.
type handler func() error

// delivery decides who runs the handler when data becomes available.
type delivery interface {
	// arm attaches the reader to the worker's waitset or installs a listener.
	arm(r api.Reader, ws *concurrency.Waitset, h handler) error
	// wake runs on the worker goroutine after the waitset reported activity.
	wake() error
	// disarm stops delivery; no handler call is in flight once it returns.
	disarm() error
}

func newDelivery(mode api.DeliveryMode) delivery {
	if mode == api.DeliveryPush {
		return &pushDelivery{}
	}
	return &pollDelivery{}
}

// pollDelivery runs the handler on the worker goroutine.
type pollDelivery struct {
	r  api.Reader
	ws *concurrency.Waitset
	h  handler
}

func (d *pollDelivery) arm(r api.Reader, ws *concurrency.Waitset, h handler) error {
	d.r, d.ws, d.h = r, ws, h
	return ws.Attach(r)
}

func (d *pollDelivery) wake() error {
	if d.r == nil || !d.r.Triggered() {
		return nil
	}
	return d.h()
}

func (d *pollDelivery) disarm() error {
	if d.r == nil {
		return nil
	}
	err := d.ws.Detach(d.r)
	d.r = nil
	return err
}

// pushDelivery runs the handler on the transport dispatch goroutine. The
// worker only learns about handler failures, through the failed guard.
type pushDelivery struct {
	r      api.Reader
	ws     *concurrency.Waitset
	failed *concurrency.Guard
	err    atomic.Pointer[error]
}

func (d *pushDelivery) arm(r api.Reader, ws *concurrency.Waitset, h handler) error {
	d.r, d.ws = r, ws
	d.failed = concurrency.NewGuard()
	if err := ws.Attach(d.failed); err != nil {
		return err
	}
	return r.SetListener(func(api.Reader) {
		if d.err.Load() != nil {
			return
		}
		if err := h(); err != nil {
			d.err.Store(&err)
			d.failed.Raise()
		}
	})
}

func (d *pushDelivery) wake() error {
	if p := d.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (d *pushDelivery) disarm() error {
	if d.r == nil {
		return nil
	}
	err := d.r.SetListener(nil)
	_ = d.ws.Detach(d.failed)
	d.r = nil
	return err
}
