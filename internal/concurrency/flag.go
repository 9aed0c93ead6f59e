// File: internal/concurrency/flag.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cooperative cancellation flag and re-armable guard condition. Both wake
// every attached waitset on change so a blocked wait returns promptly.

package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-rtt/api"
)

// Waiters is a small copy-on-write registry of api.Waiter values. The zero
// value is ready to use. WakeAll is lock-free.
type Waiters struct {
	mu      sync.Mutex
	waiters atomic.Value // []api.Waiter
}

// Add registers w.
func (l *Waiters) Add(w api.Waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old, _ := l.waiters.Load().([]api.Waiter)
	next := make([]api.Waiter, len(old)+1)
	copy(next, old)
	next[len(old)] = w
	l.waiters.Store(next)
}

// Remove unregisters w.
func (l *Waiters) Remove(w api.Waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old, _ := l.waiters.Load().([]api.Waiter)
	next := make([]api.Waiter, 0, len(old))
	for _, cur := range old {
		if cur != w {
			next = append(next, cur)
		}
	}
	l.waiters.Store(next)
}

// WakeAll wakes every registered waiter.
func (l *Waiters) WakeAll() {
	ws, _ := l.waiters.Load().([]api.Waiter)
	for _, w := range ws {
		w.Wake()
	}
}

// Flag is a one-shot cancellation indicator. Once set it stays set.
type Flag struct {
	set      atomic.Bool
	once     sync.Once
	done     chan struct{}
	initOnce sync.Once
	waiters  Waiters
}

var _ api.Condition = (*Flag)(nil)

// NewFlag returns an unset flag.
func NewFlag() *Flag {
	f := &Flag{}
	f.init()
	return f
}

func (f *Flag) init() {
	f.initOnce.Do(func() { f.done = make(chan struct{}) })
}

// Set raises the flag and wakes all attached waiters. Safe to call repeatedly
// and from any goroutine.
func (f *Flag) Set() {
	f.init()
	f.once.Do(func() {
		f.set.Store(true)
		close(f.done)
	})
	f.waiters.WakeAll()
}

// Triggered reports whether Set has been called.
func (f *Flag) Triggered() bool {
	return f.set.Load()
}

// Done returns a channel closed once the flag is set.
func (f *Flag) Done() <-chan struct{} {
	f.init()
	return f.done
}

// AddWaiter implements api.Condition.
func (f *Flag) AddWaiter(w api.Waiter) {
	f.waiters.Add(w)
	if f.Triggered() {
		w.Wake()
	}
}

// RemoveWaiter implements api.Condition.
func (f *Flag) RemoveWaiter(w api.Waiter) {
	f.waiters.Remove(w)
}

// Guard is a condition that can be raised and cleared many times.
type Guard struct {
	set     atomic.Bool
	waiters Waiters
}

var _ api.Condition = (*Guard)(nil)

// NewGuard returns a cleared guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Raise sets the guard and wakes waiters.
func (g *Guard) Raise() {
	g.set.Store(true)
	g.waiters.WakeAll()
}

// Clear resets the guard.
func (g *Guard) Clear() {
	g.set.Store(false)
}

// Triggered implements api.Condition.
func (g *Guard) Triggered() bool {
	return g.set.Load()
}

// AddWaiter implements api.Condition.
func (g *Guard) AddWaiter(w api.Waiter) {
	g.waiters.Add(w)
	if g.Triggered() {
		w.Wake()
	}
}

// RemoveWaiter implements api.Condition.
func (g *Guard) RemoveWaiter(w api.Waiter) {
	g.waiters.Remove(w)
}
