// File: pool/recycler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"
	"sync/atomic"
)

// Recycler hands out reusable values of T. Every value returned through Put
// is passed to reset first, so Get never yields state left by a previous
// user.
type Recycler[T any] struct {
	free  sync.Pool
	reset func(T)

	created  atomic.Int64
	recycled atomic.Int64
}

// RecyclerStats counts values built by the creator and values put back.
type RecyclerStats struct {
	Created  int64
	Recycled int64
}

// NewRecycler creates a Recycler. reset may be nil.
func NewRecycler[T any](create func() T, reset func(T)) *Recycler[T] {
	r := &Recycler[T]{reset: reset}
	r.free.New = func() any {
		r.created.Add(1)
		return create()
	}
	return r
}

// Get returns a pooled value or a new one.
func (r *Recycler[T]) Get() T {
	return r.free.Get().(T)
}

// Put resets v and makes it available to Get.
func (r *Recycler[T]) Put(v T) {
	if r.reset != nil {
		r.reset(v)
	}
	r.recycled.Add(1)
	r.free.Put(v)
}

// Stats returns the creation and recycling counters.
func (r *Recycler[T]) Stats() RecyclerStats {
	return RecyclerStats{Created: r.created.Load(), Recycled: r.recycled.Load()}
}
