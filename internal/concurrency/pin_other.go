//go:build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for platforms without sched_setaffinity.

package concurrency

// PinCurrentThread is not supported on this platform.
func PinCurrentThread(cpuID int) error {
	return ErrAffinityNotSupported
}

// UnpinCurrentThread is a no-op on this platform.
func UnpinCurrentThread() error {
	return nil
}
