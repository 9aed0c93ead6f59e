// Package control
// Author: momentics <momentics@gmail.com>
//
// Run configuration and runtime telemetry for the round-trip harness.
//
// Provides:
//   - Command line parsing into an immutable RunConfig
//   - Tunables layered from defaults, a config file and RTT_ environment
//   - Prometheus counters and gauges with an optional /metrics listener
package control
