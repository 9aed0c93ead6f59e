// File: stats/requirements.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stats

import "math"

// CheckHeader is the column layout of a requirement check table.
var CheckHeader = []string{
	"Check", "Bytes", "Requirement", "Experiment", "Difference",
	"Percentage over requirement", "Status",
}

const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Requirements are upper bounds in microseconds; zero disables a check.
type Requirements struct {
	Median float64
	P99    float64
	Max    float64
}

// Enabled reports whether any check is configured.
func (r Requirements) Enabled() bool {
	return r.Median > 0 || r.P99 > 0 || r.Max > 0
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Check       string
	Bytes       int
	Requirement float64
	Experiment  float64
	Difference  float64 // absolute
	OverPercent float64 // negative when under the requirement
	Status      string
}

// Passed reports whether the experiment met the requirement.
func (c CheckResult) Passed() bool { return c.Status == StatusPassed }

// Check compares s with r in the order Median, 99%, Max.
// ok is false if any configured check failed.
func Check(r Requirements, s Summary) (results []CheckResult, ok bool) {
	ok = true
	add := func(name string, req, exp float64) {
		if req <= 0 {
			return
		}
		diff := req - exp
		res := CheckResult{
			Check:       name,
			Bytes:       s.Bytes,
			Requirement: req,
			Experiment:  exp,
			Difference:  math.Abs(diff),
			OverPercent: -diff * 100 / req,
			Status:      StatusPassed,
		}
		if diff < 0 {
			res.Status = StatusFailed
			ok = false
		}
		results = append(results, res)
	}
	add("Median", r.Median, s.Median)
	add("99%", r.P99, s.P99)
	add("Max", r.Max, s.Max)
	return results, ok
}
