package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	DashboardComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_compute_duration_seconds",
			Help:    "Duration of dashboard engine runs",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	DashboardResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_results_total",
			Help: "Dashboards served, by source (computed, local, redis, stale)",
		},
		[]string{"source"},
	)

	DashboardOrders = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_orders",
			Help:    "Number of work orders per dashboard run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	FilterFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filter_calculation_fallbacks_total",
			Help: "Orders whose filter calculation failed and used the standard fallback",
		},
	)

	FilterWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_warnings_total",
			Help: "Filter warnings generated, by severity",
		},
		[]string{"severity"},
	)

	CalculatorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_calculator_requests_total",
			Help: "Remote filter calculator calls, by outcome",
		},
		[]string{"outcome"},
	)

	CalculatorBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filter_calculator_breaker_state",
			Help: "Circuit breaker state of the filter calculator (0 closed, 1 half-open, 2 open)",
		},
	)

	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_loads_total",
			Help: "Snapshot loads, by kind and source (cache, database, search)",
		},
		[]string{"kind", "source"},
	)
)

// ObserveJob records the outcome of one job. An empty errorCode means success.
func ObserveJob(taskType, errorCode string, started time.Time) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
