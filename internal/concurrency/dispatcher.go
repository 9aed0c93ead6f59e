// File: internal/concurrency/dispatcher.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher is the push-delivery loop behind a reader listener. Producers
// signal it with Notify; its goroutine invokes the installed handler
// synchronously for as long as the source reports pending data.
//
// The inbox is a one-slot channel, so any number of notifications collapse
// into a single wake-up and Notify never blocks the publisher.

package concurrency

import (
	"sync"
	"sync/atomic"
)

// Dispatcher invokes a handler whenever its source has pending data.
type Dispatcher struct {
	handler atomic.Pointer[func()]
	busy    sync.Mutex // held while the handler runs
	pending func() int
	inbox   chan struct{}
	quitCh  chan struct{} // closed on Stop()
	doneCh  chan struct{} // closed after Run() exits
	running atomic.Bool
	stopped atomic.Bool
}

// NewDispatcher creates a dispatcher draining a source whose backlog size is
// reported by pending.
func NewDispatcher(pending func() int) *Dispatcher {
	return &Dispatcher{
		pending: pending,
		inbox:   make(chan struct{}, 1),
		quitCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SetHandler installs fn. A nil fn detaches the current handler and waits
// until a call already in progress returns. It must not be called from
// inside the handler itself.
func (d *Dispatcher) SetHandler(fn func()) error {
	if d.stopped.Load() {
		if fn == nil {
			return nil
		}
		return ErrDispatcherStopped
	}
	if fn == nil {
		d.handler.Store(nil)
		// wait out a call in flight
		d.busy.Lock()
		d.busy.Unlock() //nolint:staticcheck

		return nil
	}
	d.handler.Store(&fn)
	if d.running.CompareAndSwap(false, true) {
		go d.run()
	}
	d.Notify()
	return nil
}

// Notify signals that data may be available. Non-blocking.
func (d *Dispatcher) Notify() {
	select {
	case d.inbox <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)

	for {
		select {
		case <-d.quitCh:
			return
		case <-d.inbox:
		}

	Drain:
		for {
			before := d.pending()
			if before == 0 || !d.invoke() {
				break
			}
			select {
			case <-d.quitCh:
				return
			default:
			}
			if d.pending() >= before {
				// handler made no progress; wait for the next signal
				break Drain
			}
		}
	}
}

func (d *Dispatcher) invoke() bool {
	d.busy.Lock()
	defer d.busy.Unlock()
	h := d.handler.Load()
	if h == nil {
		return false
	}
	(*h)()
	return true
}

// Stop detaches the handler, terminates the loop and waits for it.
func (d *Dispatcher) Stop() {
	if !d.stopped.CompareAndSwap(false, true) {
		return
	}
	d.handler.Store(nil)
	close(d.quitCh)
	if d.running.Load() {
		<-d.doneCh
	}
}
