package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/expensely/internal/monitoring"
)

const defaultMaintenanceMaxAge = 26 * time.Hour

// Maintenance reports degraded when a job has not run within maxAge and down
// when its latest runs keep failing.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		jobs := tracker.Snapshot()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance runs recorded"}
		}

		status := monitoring.StatusUp
		now := time.Now()
		var problems []string
		for _, job := range jobs {
			if job.ConsecutiveFailures > 1 {
				status = monitoring.StatusDown
				problems = append(problems, job.Job+": "+job.LastError)
				continue
			}
			if job.ConsecutiveFailures == 1 && status == monitoring.StatusUp {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": last run failed")
			}
			if now.Sub(job.LastRunAt) > maxAge {
				if status == monitoring.StatusUp {
					status = monitoring.StatusDegraded
				}
				problems = append(problems, job.Job+": stale since "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
