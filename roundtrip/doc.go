// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package roundtrip implements the two peers of a round-trip latency run and
// the harness that drives them.
//
// The Initiator publishes a timestamped request on the request channel and
// times the echo that comes back on the response channel; the Responder
// reflects every request unchanged, preserving its source timestamp. Each
// worker owns its endpoints, take slots and flags; the only thing the two
// share is the transport.
//
// Availability of data is signalled either by a waitset the worker blocks on
// (poll) or by a transport listener (push). Both run the same handler.
package roundtrip
