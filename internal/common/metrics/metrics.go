// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_products_scored_total",
			Help: "Total number of products run through the sustainability scorer",
		},
	)

	SustainableProducts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_sustainable_products_total",
			Help: "Total number of products that passed the sustainability threshold",
		},
	)

	SustainabilityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "advisor_sustainability_score",
			Help:    "Distribution of computed sustainability scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	RankingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_ranking_runs_total",
			Help: "Total number of ranking runs by profile",
		},
		[]string{"profile"},
	)

	CollaboratorAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_collaborator_attempts_total",
			Help: "Ranking collaborator attempts by outcome",
		},
		[]string{"outcome"},
	)

	CollaboratorFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_collaborator_fallbacks_total",
			Help: "Number of times the deterministic fallback ranking was used",
		},
	)

	CollaboratorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "advisor_collaborator_duration_seconds",
			Help: "Duration of a full cross-service ranking, retries included",
		},
	)

	ExplanationsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_explanations_total",
			Help: "Explanations produced by source (llm or template)",
		},
		[]string{"source"},
	)

	CatalogFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_catalog_fetches_total",
			Help: "Catalog fetches by source and status",
		},
		[]string{"source", "status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
