//go:build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux implementation of worker pinning via sched_setaffinity.

package concurrency

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to cpuID (taken modulo the number of CPUs). The goroutine stays
// locked until UnpinCurrentThread is called.
func PinCurrentThread(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("pin: invalid cpu %d", cpuID)
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("pin: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return nil
}

// UnpinCurrentThread restores the full CPU mask and unlocks the OS thread.
func UnpinCurrentThread() error {
	defer runtime.UnlockOSThread()

	var set unix.CPUSet
	set.Zero()
	for i := 0; i < runtime.NumCPU(); i++ {
		set.Set(i)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin: restore affinity: %w", err)
	}
	return nil
}
