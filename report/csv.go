// File: report/csv.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package report writes the latency tables produced by a run. The raw table
// header is written once per file before any worker produces rows; rows are
// appended in one pass after the measurement loop ends.

package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/momentics/hioload-rtt/stats"
)

// RawHeader is the header of the per-sample latency table.
var RawHeader = []string{"Sample", "Payload [Bytes]", "Latency [us]"}

// WriteHeader truncates path and writes the raw table header.
func WriteHeader(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	return writeAndClose(f, [][]string{RawHeader})
}

// AppendRows appends rows to the raw table at path.
func AppendRows(path string, rows []stats.Row) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("report: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	rec := make([]string, 3)
	for _, r := range rows {
		rec[0] = strconv.Itoa(r.Sample)
		rec[1] = strconv.Itoa(r.Payload)
		rec[2] = strconv.FormatFloat(r.LatencyUs, 'f', 6, 64)
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	return flushAndClose(f, w)
}

// WriteSummary writes a single-row summary table to path.
func WriteSummary(path string, s stats.Summary) error {
	rec := []string{strconv.Itoa(s.Bytes), strconv.Itoa(s.Samples)}
	for _, v := range s.Record() {
		rec = append(rec, formatFloat(v))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	return writeAndClose(f, [][]string{stats.SummaryHeader, rec})
}

// WriteChecks writes requirement check results to path.
func WriteChecks(path string, results []stats.CheckResult) error {
	records := [][]string{stats.CheckHeader}
	for _, c := range results {
		records = append(records, []string{
			c.Check,
			strconv.Itoa(c.Bytes),
			formatFloat(c.Requirement),
			formatFloat(c.Experiment),
			formatFloat(c.Difference),
			formatFloat(c.OverPercent),
			c.Status,
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	return writeAndClose(f, records)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func writeAndClose(f *os.File, records [][]string) error {
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: write %s: %w", f.Name(), err)
	}
	return f.Close()
}

func flushAndClose(f *os.File, w *csv.Writer) error {
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: write %s: %w", f.Name(), err)
	}
	return f.Close()
}
