package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/charlesng35/expensely/pkg/metrics"
)

// JobStatus summarises the runs of one maintenance job.
type JobStatus struct {
	Job                 string        `json:"job"`
	LastResult          string        `json:"last_result"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	TotalRuns           int           `json:"total_runs"`
}

// JobTracker records maintenance job outcomes for the maintenance health probe.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobStatus
	now  func() time.Time
}

func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobStatus), now: time.Now}
}

// Record stores the outcome of a run. A nil err marks success.
func (t *JobTracker) Record(job string, err error, duration time.Duration) {
	if t == nil || job == "" {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()
	metrics.MaintenanceDuration.WithLabelValues(job).Observe(duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.jobs[job]
	if !ok {
		status = &JobStatus{Job: job}
		t.jobs[job] = status
	}
	now := t.now()
	status.LastResult = result
	status.LastRunAt = now
	status.LastDuration = duration
	status.TotalRuns++
	if err != nil {
		status.LastError = err.Error()
		status.ConsecutiveFailures++
		return
	}
	status.LastError = ""
	status.LastSuccessAt = now
	status.ConsecutiveFailures = 0
}

// Snapshot returns the recorded jobs sorted by name.
func (t *JobTracker) Snapshot() []JobStatus {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobStatus, 0, len(t.jobs))
	for _, status := range t.jobs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
