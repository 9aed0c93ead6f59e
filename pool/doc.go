// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory reuse for the measurement path: fixed take batches owned by each
// worker, a bounded free list of payload buffers used by the transport, and
// a typed wrapper over sync.Pool. Nothing here allocates once warmed up.
package pool
