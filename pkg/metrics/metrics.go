package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by flow (register|login|verify) and result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensely_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"flow", "result"},
	)

	// AuthorizationDecisions counts rule evaluations and their outcome (allow|deny).
	AuthorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensely_authorization_decisions_total",
			Help: "Total number of authorization rule evaluations",
		},
		[]string{"permission", "result"},
	)

	// ExpenseTransitions counts expense status writes by target status.
	ExpenseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensely_expense_transitions_total",
			Help: "Expense status changes by resulting status",
		},
		[]string{"status"},
	)

	// InvitationTransitions counts invitation status writes by target status.
	InvitationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensely_invitation_transitions_total",
			Help: "Invitation status changes by resulting status",
		},
		[]string{"status"},
	)

	// ExtractionResults counts receipt extraction outcomes (success|failure|rate_limited).
	ExtractionResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensely_extraction_results_total",
			Help: "Receipt extraction outcomes",
		},
		[]string{"result"},
	)

	// ExtractionLatency measures round trips to the extraction model.
	ExtractionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "expensely_extraction_latency_seconds",
			Help:    "Latency of receipt extraction model calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expensely_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// MaintenanceRuns counts background job runs by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensely_maintenance_runs_total",
			Help: "Maintenance job runs by outcome",
		},
		[]string{"job", "result"},
	)

	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expensely_maintenance_duration_seconds",
			Help:    "Duration of maintenance job runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
