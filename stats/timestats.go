// File: stats/timestats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TimeStats records round-trip durations in nanoseconds. Storage grows in
// fixed increments and a recorded value is never dropped: failing to grow is
// reported to the caller as an allocation error.

package stats

import (
	"fmt"

	"github.com/momentics/hioload-rtt/api"
)

// DefaultIncrement is the number of values reserved per growth step.
const DefaultIncrement = 50000

// Row is one exported measurement.
type Row struct {
	Sample    int     // 1-based
	Payload   int     // bytes
	LatencyUs float64 // one-way approximation: round trip / 2
}

// TimeStats is owned by a single worker and is not safe for concurrent use.
type TimeStats struct {
	values    []int64
	increment int
	limit     int

	count   int
	average float64
	min     int64
	max     int64
}

// New allocates the first increment. limit caps the number of stored values;
// 0 means unbounded.
func New(increment, limit int) *TimeStats {
	if increment <= 0 {
		increment = DefaultIncrement
	}
	return &TimeStats{
		values:    make([]int64, 0, increment),
		increment: increment,
		limit:     limit,
	}
}

// Reset clears the aggregate and the history, keeping capacity.
func (ts *TimeStats) Reset() {
	ts.values = ts.values[:0]
	ts.count = 0
	ts.average = 0
	ts.min = 0
	ts.max = 0
}

// Record appends a round-trip duration in nanoseconds.
func (ts *TimeStats) Record(ns int64) error {
	if len(ts.values) == cap(ts.values) {
		if err := ts.grow(); err != nil {
			return err
		}
	}
	ts.values = append(ts.values, ns)

	ts.average = (float64(ts.count)*ts.average + float64(ns)) / float64(ts.count+1)
	if ts.count == 0 || ns < ts.min {
		ts.min = ns
	}
	if ts.count == 0 || ns > ts.max {
		ts.max = ns
	}
	ts.count++
	return nil
}

func (ts *TimeStats) grow() (err error) {
	next := cap(ts.values) + ts.increment
	if ts.limit > 0 && cap(ts.values) >= ts.limit {
		return api.NewError(api.ErrCodeAllocation, "timing history full").
			WithContext("limit", ts.limit)
	}
	if ts.limit > 0 && next > ts.limit {
		next = ts.limit
	}
	defer func() {
		if r := recover(); r != nil {
			err = api.WrapError(api.ErrCodeAllocation, "timing history cannot grow",
				fmt.Errorf("%v: %w", r, api.ErrResourceExhausted)).
				WithContext("capacity", next)
		}
	}()
	values := make([]int64, len(ts.values), next)
	copy(values, ts.values)
	ts.values = values
	return nil
}

// Count returns the number of recorded values.
func (ts *TimeStats) Count() int { return ts.count }

// Average returns the running mean in nanoseconds.
func (ts *TimeStats) Average() float64 { return ts.average }

// Min returns the smallest recorded value.
func (ts *TimeStats) Min() int64 { return ts.min }

// Max returns the largest recorded value.
func (ts *TimeStats) Max() int64 { return ts.max }

// Values returns the recorded history in recording order. The slice aliases
// internal storage and is valid until the next Record or Reset.
func (ts *TimeStats) Values() []int64 { return ts.values }

// Export converts the history to rows for payload bytes. Latency is the
// round trip in microseconds halved.
func (ts *TimeStats) Export(payload int) []Row {
	rows := make([]Row, len(ts.values))
	for i, v := range ts.values {
		rows[i] = Row{
			Sample:    i + 1,
			Payload:   payload,
			LatencyUs: OneWayMicros(v),
		}
	}
	return rows
}

// Teardown releases storage. Record may still be called afterwards and will
// allocate a fresh block.
func (ts *TimeStats) Teardown() {
	ts.Reset()
	ts.values = nil
}

// OneWayMicros converts a round trip in nanoseconds to the reported latency.
func OneWayMicros(ns int64) float64 {
	return float64(ns) / 1000 / 2
}
