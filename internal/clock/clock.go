// File: internal/clock/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Monotonic, high-resolution time source shared by both peers of a run.
// Values are nanoseconds since an arbitrary process-local origin and are
// only meaningful as differences.

package clock

import (
	"time"

	"github.com/loov/hrtime"
)

// Now returns the current monotonic time in nanoseconds.
func Now() int64 {
	return int64(hrtime.Now())
}

// Since returns the time elapsed since t, a value previously returned by Now.
func Since(t int64) time.Duration {
	return time.Duration(Now() - t)
}
