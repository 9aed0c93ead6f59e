// File: transport/inproc/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package inproc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/internal/concurrency"
)

// reader owns a FIFO backlog fed by every writer of its channel.
type reader struct {
	ch  *channel
	dom *Domain
	qos api.QoS

	mu      sync.Mutex
	backlog *queue.Queue // of *message

	_       cpu.CacheLinePad
	pending atomic.Int64

	space    chan struct{} // signalled when Take frees room
	closedCh chan struct{}
	closed   atomic.Bool

	waiters    concurrency.Waiters
	dispatcher *concurrency.Dispatcher
}

var _ api.Reader = (*reader)(nil)

func newReader(ch *channel, dom *Domain, qos api.QoS) *reader {
	r := &reader{
		ch:       ch,
		dom:      dom,
		qos:      qos,
		backlog:  queue.New(),
		space:    make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
	r.dispatcher = concurrency.NewDispatcher(r.Pending)
	return r
}

// Take implements api.Reader.
func (r *reader) Take(samples []api.Sample, infos []api.SampleInfo) (int, error) {
	if r.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	limit := len(samples)
	if len(infos) < limit {
		limit = len(infos)
	}

	r.mu.Lock()
	n := 0
	for n < limit && r.backlog.Length() > 0 {
		m := r.backlog.Remove().(*message)
		samples[n].Payload = append(samples[n].Payload[:0], m.payload...)
		infos[n] = api.SampleInfo{
			SourceTimestamp: m.ts,
			ValidData:       m.valid,
			State:           m.state,
		}
		r.dom.releaseMessage(m)
		n++
	}
	r.pending.Add(-int64(n))
	r.mu.Unlock()

	if n > 0 {
		select {
		case r.space <- struct{}{}:
		default:
		}
	}
	return n, nil
}

// SetListener implements api.Reader.
func (r *reader) SetListener(fn func(api.Reader)) error {
	if fn == nil {
		return r.dispatcher.SetHandler(nil)
	}
	if r.closed.Load() {
		return api.ErrTransportClosed
	}
	return r.dispatcher.SetHandler(func() { fn(r) })
}

// Pending implements api.Reader.
func (r *reader) Pending() int {
	return int(r.pending.Load())
}

// Triggered implements api.Condition: data is available.
func (r *reader) Triggered() bool {
	return r.pending.Load() > 0
}

// AddWaiter implements api.Condition.
func (r *reader) AddWaiter(w api.Waiter) {
	r.waiters.Add(w)
	if r.Triggered() {
		w.Wake()
	}
}

// RemoveWaiter implements api.Condition.
func (r *reader) RemoveWaiter(w api.Waiter) {
	r.waiters.Remove(w)
}

// Close implements api.Reader. Pending messages are discarded.
func (r *reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.ch.detach(r)
	close(r.closedCh)
	r.dispatcher.Stop()

	r.mu.Lock()
	for r.backlog.Length() > 0 {
		r.dom.releaseMessage(r.backlog.Remove().(*message))
	}
	r.pending.Store(0)
	r.mu.Unlock()

	r.waiters.WakeAll()
	return nil
}

// deliver enqueues m, blocking within the reliability window while the
// backlog is full.
func (r *reader) deliver(m *message) error {
	var deadline time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		r.mu.Lock()
		if r.closed.Load() {
			r.mu.Unlock()
			r.dom.releaseMessage(m)
			return nil
		}
		if r.qos.Depth <= 0 || r.backlog.Length() < r.qos.Depth {
			r.backlog.Add(m)
			r.pending.Add(1)
			r.mu.Unlock()
			r.waiters.WakeAll()
			r.dispatcher.Notify()
			return nil
		}
		r.mu.Unlock()

		if r.qos.Reliability == api.BestEffort {
			r.dom.releaseMessage(m)
			return nil
		}

		if timer == nil {
			deadline = time.Now().Add(r.qos.MaxBlocking)
			timer = time.NewTimer(r.qos.MaxBlocking)
		}
		select {
		case <-r.space:
		case <-r.closedCh:
		case <-timer.C:
			if time.Now().Before(deadline) {
				continue
			}
			r.dom.releaseMessage(m)
			return fmt.Errorf("inproc: channel %q backlog full for %v: %w",
				r.ch.name, r.qos.MaxBlocking, api.ErrOperationTimeout)
		}
	}
}
