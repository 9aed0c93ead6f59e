// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "fmt"

// MaxPayloadSize is the largest accepted sample payload (100 MiB).
const MaxPayloadSize = 100 * 1024 * 1024

// Sample is the unit exchanged between the two peers. The origin timestamp
// is not part of the payload; it travels in SampleInfo.
type Sample struct {
	Payload []byte
}

// InstanceState reports the lifecycle of the data carried by a take slot.
type InstanceState int

const (
	InstanceAlive InstanceState = iota
	// InstanceDisposed marks a termination request from the writer.
	InstanceDisposed
)

func (s InstanceState) String() string {
	switch s {
	case InstanceAlive:
		return "alive"
	case InstanceDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// SampleInfo is the metadata returned alongside every taken sample.
type SampleInfo struct {
	SourceTimestamp int64 // nanoseconds, as given to Writer.Publish
	ValidData       bool
	State           InstanceState
}

// DeliveryMode selects how availability of data is signalled to a worker.
type DeliveryMode int

const (
	// DeliveryPoll blocks the worker on a timed wait and takes explicitly.
	DeliveryPoll DeliveryMode = iota
	// DeliveryPush lets the transport invoke a listener when data arrives.
	DeliveryPush
)

func (m DeliveryMode) String() string {
	switch m {
	case DeliveryPoll:
		return "poll"
	case DeliveryPush:
		return "push"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseDeliveryMode converts "poll"/"push" (or "waitset"/"listener").
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch s {
	case "poll", "waitset", "":
		return DeliveryPoll, nil
	case "push", "listener":
		return DeliveryPush, nil
	default:
		return DeliveryPoll, fmt.Errorf("%w: delivery mode %q", ErrInvalidArgument, s)
	}
}
