package orchestrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for run orchestration.
var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_submissions_total",
		Help: "Total chunk submissions by field and classified outcome",
	}, []string{"field", "outcome"})

	pollAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_poll_attempts_total",
		Help: "Total poll attempts across all jobs",
	})

	pollJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_poll_jobs_total",
		Help: "Total poll jobs by terminal outcome",
	}, []string{"outcome"}) // "resolved", "failed", "timeout"

	unattributedAssetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_unattributed_assets_total",
		Help: "Total returned assets dropped because no item ID could be reconciled",
	})
)
