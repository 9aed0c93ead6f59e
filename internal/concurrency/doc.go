// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for the round-trip workers: cooperative
// cancellation flags, guard conditions, a bounded-timeout waitset, the
// listener dispatcher used for push delivery, and CPU pinning.
package concurrency
