// Package api
// Author: momentics@gmail.com
//
// Waitable conditions for bounded-timeout blocking waits.

package api

// Waiter is woken whenever an attached Condition may have changed.
// Wake must not block.
type Waiter interface {
	Wake()
}

// Condition is a predicate a worker can block on.
type Condition interface {
	// Triggered reports whether the condition currently holds.
	Triggered() bool
	// AddWaiter registers w to be woken on every change.
	AddWaiter(w Waiter)
	// RemoveWaiter unregisters w.
	RemoveWaiter(w Waiter)
}
