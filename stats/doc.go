// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package stats holds the round-trip timing history and its post-processing:
// the running aggregate kept during measurement, the per-run summary table and
// the latency requirement checks applied to it.
package stats
