// File: roundtrip/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package roundtrip

import "github.com/momentics/hioload-rtt/api"

func transportError(op, channel string, err error) error {
	return api.WrapError(api.ErrCodeTransport, op, err).WithContext("channel", channel)
}

// slotCapacity bounds the payload memory reserved up front for take slots.
// Larger payloads grow a slot on first use and keep the capacity afterwards.
func slotCapacity(payload, slots int) int {
	const reserveLimit = 64 << 20
	if payload*slots > reserveLimit {
		return 0
	}
	return payload
}
