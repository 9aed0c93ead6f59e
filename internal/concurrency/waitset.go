// File: internal/concurrency/waitset.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Waitset blocks a single owner goroutine until one of its attached
// conditions triggers or a timeout elapses. The timeout only bounds how long
// the owner sleeps between re-checks; it is not a processing deadline.
//
// A single timer is reused across waits so the steady state does not allocate.

package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-rtt/api"
)

// Waitset multiplexes api.Condition values for one waiting goroutine.
type Waitset struct {
	conds  atomic.Value // []api.Condition, copy-on-write
	condMu sync.Mutex
	wake   chan struct{}
	timer  *time.Timer
	closed atomic.Bool
}

var _ api.Waiter = (*Waitset)(nil)

// NewWaitset creates an empty waitset.
func NewWaitset() *Waitset {
	ws := &Waitset{wake: make(chan struct{}, 1)}
	ws.conds.Store([]api.Condition{})

	// Create a reusable timer, initially stopped
	ws.timer = time.NewTimer(time.Hour)
	stopTimer(ws.timer)
	return ws
}

// Attach adds c to the waitset.
func (ws *Waitset) Attach(c api.Condition) error {
	if ws.closed.Load() {
		return ErrWaitsetClosed
	}
	ws.condMu.Lock()
	old := ws.conds.Load().([]api.Condition)
	for _, cur := range old {
		if cur == c {
			ws.condMu.Unlock()
			return api.ErrAlreadyExists
		}
	}
	next := make([]api.Condition, len(old)+1)
	copy(next, old)
	next[len(old)] = c
	ws.conds.Store(next)
	ws.condMu.Unlock()

	c.AddWaiter(ws)
	return nil
}

// Detach removes c from the waitset.
func (ws *Waitset) Detach(c api.Condition) error {
	ws.condMu.Lock()
	old := ws.conds.Load().([]api.Condition)
	next := make([]api.Condition, 0, len(old))
	found := false
	for _, cur := range old {
		if cur == c {
			found = true
			continue
		}
		next = append(next, cur)
	}
	ws.conds.Store(next)
	ws.condMu.Unlock()

	if !found {
		return api.ErrNotFound
	}
	c.RemoveWaiter(ws)
	return nil
}

// Wake implements api.Waiter. It never blocks.
func (ws *Waitset) Wake() {
	select {
	case ws.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until at least one attached condition is triggered or timeout
// elapses, and returns the number of triggered conditions (0 on timeout).
// A negative timeout waits without bound.
func (ws *Waitset) Wait(timeout time.Duration) (int, error) {
	if ws.closed.Load() {
		return 0, ErrWaitsetClosed
	}
	if n := ws.triggered(); n > 0 {
		return n, nil
	}
	if timeout == 0 {
		return 0, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		ws.timer.Reset(timeout)
		expired = ws.timer.C
	}
	for {
		select {
		case <-ws.wake:
			if ws.closed.Load() {
				stopTimer(ws.timer)
				return 0, ErrWaitsetClosed
			}
			if n := ws.triggered(); n > 0 {
				stopTimer(ws.timer)
				return n, nil
			}
			// spurious wake; keep waiting for the same deadline
		case <-expired:
			return ws.triggered(), nil
		}
	}
}

// Close detaches every condition and fails subsequent waits.
func (ws *Waitset) Close() error {
	if !ws.closed.CompareAndSwap(false, true) {
		return nil
	}
	ws.condMu.Lock()
	old := ws.conds.Load().([]api.Condition)
	ws.conds.Store([]api.Condition{})
	ws.condMu.Unlock()
	for _, c := range old {
		c.RemoveWaiter(ws)
	}
	ws.Wake()
	stopTimer(ws.timer)
	return nil
}

func (ws *Waitset) triggered() int {
	n := 0
	for _, c := range ws.conds.Load().([]api.Condition) {
		if c.Triggered() {
			n++
		}
	}
	return n
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
