// File: pool/slab_pool.go
// Package pool implements a bounded free list of byte buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync/atomic"

const defaultPoolCapacity = 4096

// SlabPool recycles payload buffers. A buffer handed out by Get has at least
// the requested length; buffers whose capacity is too small are dropped and
// replaced.
type SlabPool struct {
	free chan []byte

	totalAlloc atomic.Int64
	totalReuse atomic.Int64
	totalFree  atomic.Int64
}

// SlabStats aggregates buffer allocation/reuse stats.
type SlabStats struct {
	TotalAlloc int64
	TotalReuse int64
	TotalFree  int64
	Idle       int
}

// NewSlabPool creates a pool keeping at most capacity idle buffers.
func NewSlabPool(capacity int) *SlabPool {
	if capacity <= 0 {
		capacity = defaultPoolCapacity
	}
	return &SlabPool{free: make(chan []byte, capacity)}
}

// Get returns a buffer of length size.
func (p *SlabPool) Get(size int) []byte {
	select {
	case buf := <-p.free:
		if cap(buf) >= size {
			p.totalReuse.Add(1)
			return buf[:size]
		}
	default:
	}
	p.totalAlloc.Add(1)
	return make([]byte, size)
}

// Put returns buf to the pool; buf must not be used afterwards.
func (p *SlabPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	select {
	case p.free <- buf[:0]:
		p.totalFree.Add(1)
	default:
		// pool full, let GC reclaim it
	}
}

// Drain drops all idle buffers.
func (p *SlabPool) Drain() {
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}

// Stats exposes resource/accounting metrics for observability.
func (p *SlabPool) Stats() SlabStats {
	return SlabStats{
		TotalAlloc: p.totalAlloc.Load(),
		TotalReuse: p.totalReuse.Load(),
		TotalFree:  p.totalFree.Load(),
		Idle:       len(p.free),
	}
}
