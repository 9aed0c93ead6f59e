// File: transport/inproc/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package inproc

import (
	"sync/atomic"

	"github.com/momentics/hioload-rtt/api"
)

type writer struct {
	ch     *channel
	dom    *Domain
	qos    api.QoS
	closed atomic.Bool
}

var _ api.Writer = (*writer)(nil)

// Publish implements api.Writer.
func (w *writer) Publish(s *api.Sample, sourceTimestamp int64) error {
	if s == nil {
		return api.ErrInvalidArgument
	}
	return w.broadcast(s.Payload, sourceTimestamp, true, api.InstanceAlive)
}

// Dispose implements api.Writer.
func (w *writer) Dispose() error {
	return w.broadcast(nil, 0, false, api.InstanceDisposed)
}

// Close implements api.Writer. Closing does not dispose.
func (w *writer) Close() error {
	w.closed.Store(true)
	return nil
}

func (w *writer) broadcast(payload []byte, ts int64, valid bool, state api.InstanceState) error {
	if w.closed.Load() || w.dom.closed.Load() {
		return api.ErrTransportClosed
	}
	for _, r := range w.ch.snapshot() {
		if err := r.deliver(w.dom.newMessage(payload, ts, valid, state)); err != nil {
			return err
		}
	}
	return nil
}
