// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package inproc provides an in-process implementation of api.Transport.
// Channels are named and unidirectional; every reader present at publish
// time receives its own copy of each message, in publish order. Reliable
// endpoints apply back-pressure bounded by the QoS blocking window instead of
// dropping data. Payload buffers and message envelopes are recycled so a warm
// channel does not allocate per message.
package inproc
