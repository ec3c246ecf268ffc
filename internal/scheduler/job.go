package scheduler

import (
	"context"
	"time"
)

// historyLimit bounds the per-job result log
const historyLimit = 100

// Job is anything the scheduler can fire on a cron expression
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes one attempt. A returned error triggers the retry policy.
	Run(ctx context.Context) error

	// Schedule is a 5-field or 6-field cron spec, or a descriptor like "@daily"
	Schedule() string
}

// RunIdentified is implemented by jobs that tag each attempt with a run id
// (the pipeline job reports the orchestrator run id).
type RunIdentified interface {
	LastRunID() string
}

// JobResult is one fired tick of a job, after retries
type JobResult struct {
	JobName   string        `json:"job_name"`
	RunID     string        `json:"run_id,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped"` // previous tick still running
	Error     string        `json:"error,omitempty"`
}

// JobHistory keeps the last historyLimit results of one job
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest past the limit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// Latest returns up to n most recent results, oldest first
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// Executed returns the results that actually ran (skipped ticks excluded)
func (h *JobHistory) Executed() []JobResult {
	executed := make([]JobResult, 0, len(h.Results))
	for _, r := range h.Results {
		if !r.Skipped {
			executed = append(executed, r)
		}
	}
	return executed
}

// Failed returns executed results that did not succeed
func (h *JobHistory) Failed() []JobResult {
	failed := make([]JobResult, 0)
	for _, r := range h.Executed() {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// SuccessRate is successes over executed runs (0.0 - 1.0)
func (h *JobHistory) SuccessRate() float64 {
	executed := h.Executed()
	if len(executed) == 0 {
		return 0.0
	}
	return float64(len(executed)-len(h.Failed())) / float64(len(executed))
}

// lastWhere returns the start time of the newest result matching ok
func (h *JobHistory) lastWhere(ok func(JobResult) bool) *time.Time {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if ok(h.Results[i]) {
			t := h.Results[i].StartTime
			return &t
		}
	}
	return nil
}
