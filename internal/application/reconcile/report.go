package reconcileapp

import (
	"time"

	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// RunReport collects the results of one multi-kind run
type RunReport struct {
	RunID      string                    `json:"run_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Results    []*reconcile.Result       `json:"results"`
	Errors     map[reconcile.Kind]string `json:"errors,omitempty"`
}

func newRunReport(runID string, started time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		StartedAt: started,
		Results:   []*reconcile.Result{},
	}
}

func (r *RunReport) add(result *reconcile.Result) {
	r.Results = append(r.Results, result)
}

func (r *RunReport) fail(kind reconcile.Kind, err error) {
	if r.Errors == nil {
		r.Errors = make(map[reconcile.Kind]string)
	}
	r.Errors[kind] = err.Error()
}

func (r *RunReport) finish(at time.Time) {
	r.FinishedAt = at
}

// Truncated reports whether any kind ran on partial data
func (r *RunReport) Truncated() bool {
	for _, res := range r.Results {
		if res.Truncated {
			return true
		}
	}
	return false
}

// Totals sums the counters over every kind that ran
func (r *RunReport) Totals() reconcile.Result {
	var total reconcile.Result
	for _, res := range r.Results {
		total.Created += res.Created
		total.Updated += res.Updated
		total.Processed += res.Processed
		total.Skipped += res.Skipped
		total.Truncated = total.Truncated || res.Truncated
		total.RateLimited = total.RateLimited || res.RateLimited
		total.Duration += res.Duration
	}
	return total
}

// Result returns the result of one kind, if it ran
func (r *RunReport) Result(kind reconcile.Kind) (*reconcile.Result, bool) {
	for _, res := range r.Results {
		if res.Kind == kind {
			return res, true
		}
	}
	return nil, false
}
