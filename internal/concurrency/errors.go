// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrWaitsetClosed indicates the waitset has been closed
	ErrWaitsetClosed = errors.New("waitset is closed")

	// ErrDispatcherStopped indicates the dispatcher no longer delivers events
	ErrDispatcherStopped = errors.New("dispatcher is stopped")

	// ErrAffinityNotSupported indicates CPU affinity is not supported on this platform
	ErrAffinityNotSupported = errors.New("CPU affinity not supported")
)
