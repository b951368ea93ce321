package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessChecks counts task-assignment access evaluations and their outcome (allow|deny).
	AccessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktrack_access_checks_total",
			Help: "Total number of task-assignment access evaluations",
		},
		[]string{"result"},
	)

	// SweepRuns counts background sweep executions by job and outcome (success|error).
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktrack_sweep_runs_total",
			Help: "Total number of background sweep executions",
		},
		[]string{"job", "result"},
	)

	// SweepRowsProcessed counts rows transitioned by each background sweep.
	SweepRowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktrack_sweep_rows_total",
			Help: "Total number of rows transitioned by background sweeps",
		},
		[]string{"job"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worktrack_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
