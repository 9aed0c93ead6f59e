// File: cmd/rtt-pingpong/main.go
// Package main
// Round-trip latency benchmark over the in-process publish/subscribe
// transport. Writes one CSV row per recorded round trip.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/control"
	"github.com/momentics/hioload-rtt/internal/logging"
	"github.com/momentics/hioload-rtt/roundtrip"
	"github.com/momentics/hioload-rtt/transport/inproc"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := control.ParseArgs(args)
	if err != nil {
		if !errors.Is(err, api.ErrHelp) {
			fmt.Fprintf(stderr, "rtt-pingpong: %v\n", err)
		}
		fmt.Fprint(stdout, control.Usage)
		return 1
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Fprintf(stderr, "rtt-pingpong: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dom := inproc.NewDomain()
	defer dom.Close()

	metrics := control.NewMetrics()
	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"rtt_transport_buffer_allocations", "Payload buffers allocated by the transport.",
			func() float64 { return float64(dom.BufferStats().TotalAlloc) }},
		{"rtt_transport_buffer_reuses", "Payload buffers reused by the transport.",
			func() float64 { return float64(dom.BufferStats().TotalReuse) }},
		{"rtt_transport_envelope_allocations", "Message envelopes allocated by the transport.",
			func() float64 { return float64(dom.EnvelopeStats().Created) }},
	}
	for _, p := range gauges {
		if err := metrics.RegisterGaugeFunc(p.name, p.help, p.fn); err != nil {
			log.Warn("metrics gauge not registered", zap.String("name", p.name), zap.Error(err))
		}
	}
	if cfg.MetricsAddr != "" {
		if _, err := metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
			log.Error("metrics listener", zap.Error(err))
			return 1
		}
	}

	h := roundtrip.NewHarness(cfg, dom, log, metrics)
	if cfg.Quit {
		err = h.Quit(ctx)
	} else {
		err = h.Run(ctx)
	}
	if err != nil {
		log.Error("run failed", zap.Stringer("code", api.CodeOf(err)), zap.Error(err))
		return 1
	}
	return 0
}
