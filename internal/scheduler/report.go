package scheduler

import (
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
)

// RunStatus is the aggregate outcome of a matrix run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Report is the final result set for one matrix run. Results appear in the
// expander's canonical order (target name, then combination key), never in
// completion order.
type Report struct {
	RunID     string                 `json:"run_id"`
	Policy    config.SchedulerPolicy `json:"policy"`
	Results   []matrix.Result        `json:"results"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
}

// Status returns Failed if any job failed. Skipped jobs alone do not fail a
// run: "didn't run" is not "ran and failed".
func (r *Report) Status() RunStatus {
	for _, res := range r.Results {
		if res.Status == matrix.StatusFailed {
			return RunFailed
		}
	}
	return RunSucceeded
}

// Counts returns the number of succeeded, failed and skipped jobs.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case matrix.StatusSucceeded:
			succeeded++
		case matrix.StatusFailed:
			failed++
		case matrix.StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Failed returns the failed results in canonical order.
func (r *Report) Failed() []matrix.Result {
	var out []matrix.Result
	for _, res := range r.Results {
		if res.Status == matrix.StatusFailed {
			out = append(out, res)
		}
	}
	return out
}
