// File: stats/summary.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"
)

// SummaryHeader is the column layout of a summary table.
var SummaryHeader = []string{
	"Bytes", "Samples", "Max", "Min", "Mean", "Median", "Stdev",
	"Mean jitter", "Max jitter", "90%", "99%", "99.99%",
}

// Summary describes the latency distribution of one run, in microseconds.
type Summary struct {
	Bytes      int
	Samples    int
	Max        float64
	Min        float64
	Mean       float64
	Median     float64
	Stdev      float64 // population
	MeanJitter float64
	MaxJitter  float64
	P90        float64
	P99        float64
	P9999      float64
}

// Summarize computes a Summary of latencies given in recording order.
// Jitter is the absolute difference between consecutive latencies.
func Summarize(payload int, latencies []float64) (Summary, error) {
	s := Summary{Bytes: payload, Samples: len(latencies)}
	if len(latencies) == 0 {
		return s, nil
	}
	data := mstats.Float64Data(latencies)

	var err error
	if s.Max, err = data.Max(); err != nil {
		return s, err
	}
	if s.Min, err = data.Min(); err != nil {
		return s, err
	}
	if s.Mean, err = data.Mean(); err != nil {
		return s, err
	}
	if s.Median, err = data.Median(); err != nil {
		return s, err
	}
	if s.Stdev, err = data.StandardDeviationPopulation(); err != nil {
		return s, err
	}

	if len(latencies) > 1 {
		jitter := make(mstats.Float64Data, len(latencies)-1)
		for i := 1; i < len(latencies); i++ {
			jitter[i-1] = math.Abs(latencies[i] - latencies[i-1])
		}
		s.MeanJitter, _ = jitter.Mean()
		s.MaxJitter, _ = jitter.Max()
	}

	s.P90 = percentile(data, 90, s.Max)
	s.P99 = percentile(data, 99, s.Max)
	s.P9999 = percentile(data, 99.99, s.Max)
	return s, nil
}

// SummarizeHistory summarizes a recorded history.
func SummarizeHistory(payload int, ts *TimeStats) (Summary, error) {
	values := ts.Values()
	lat := make([]float64, len(values))
	for i, v := range values {
		lat[i] = OneWayMicros(v)
	}
	return Summarize(payload, lat)
}

// percentile falls back to max when the sample set is too small for the
// requested rank.
func percentile(data mstats.Float64Data, p, max float64) float64 {
	v, err := data.Percentile(p)
	if err != nil || math.IsNaN(v) {
		return max
	}
	return v
}

// Record returns the summary as table cells in SummaryHeader order.
func (s Summary) Record() []float64 {
	return []float64{
		s.Max, s.Min, s.Mean, s.Median, s.Stdev,
		s.MeanJitter, s.MaxJitter, s.P90, s.P99, s.P9999,
	}
}
