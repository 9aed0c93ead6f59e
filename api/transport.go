// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the publish/subscribe transport abstraction consumed by the
// round-trip workers: named unidirectional channels, explicit source
// timestamps, batched take and disposal markers.

package api

import "time"

// Reliability selects the delivery guarantee of a channel endpoint.
type Reliability int

const (
	// Reliable blocks the publisher while the reader backlog is full,
	// for at most QoS.MaxBlocking, and never drops silently.
	Reliable Reliability = iota
	// BestEffort drops a message when the reader backlog is full.
	BestEffort
)

// QoS carries per-endpoint quality-of-service settings.
type QoS struct {
	Reliability Reliability
	MaxBlocking time.Duration // resend/retry window for Reliable
	Depth       int           // reader backlog limit
}

// DefaultQoS mirrors the reliable 10 second window used by the benchmark.
func DefaultQoS() QoS {
	return QoS{
		Reliability: Reliable,
		MaxBlocking: 10 * time.Second,
		Depth:       1024,
	}
}

// Transport creates channel endpoints.
type Transport interface {
	// CreateWriter opens a publishing endpoint on the named channel.
	CreateWriter(channel string, qos QoS) (Writer, error)
	// CreateReader opens a subscribing endpoint on the named channel.
	CreateReader(channel string, qos QoS) (Reader, error)
	// Close releases every endpoint created by this transport.
	Close() error
}

// Writer publishes samples on one channel.
type Writer interface {
	// Publish sends s stamped with sourceTimestamp (monotonic nanoseconds).
	// The payload is copied; s may be reused as soon as Publish returns.
	Publish(s *Sample, sourceTimestamp int64) error
	// Dispose sends a termination marker to every reader of the channel.
	Dispose() error
	Close() error
}

// Reader receives samples from one channel. A Reader is a Condition that is
// triggered while messages are pending, so it can be attached to a waitset.
type Reader interface {
	Condition

	// Take removes up to len(samples) pending messages in publish order.
	// Payloads are copied into samples[i].Payload reusing its capacity;
	// infos[i] receives the metadata. Returns the number of slots filled.
	Take(samples []Sample, infos []SampleInfo) (int, error)

	// SetListener installs fn to be invoked by the transport whenever data is
	// available. A nil fn detaches the listener and waits for any call in
	// flight to return.
	SetListener(fn func(Reader)) error

	// Pending returns the number of messages waiting to be taken.
	Pending() int

	Close() error
}
