// internal/common/metrics/metrics.go
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
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"task_type"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of each research pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"stage"},
	)

	PipelineFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_fallbacks_total",
			Help: "Number of deterministic fallbacks used in place of completion output",
		},
		[]string{"artifact"},
	)

	DiscoveryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_requests_total",
			Help: "Discovery service calls by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	DiscoveryCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_hits_total",
			Help: "Discovery responses served from the cache",
		},
		[]string{"operation"},
	)

	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_requests_total",
			Help: "Completion service calls by outcome",
		},
		[]string{"status"},
	)
)

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, started time.Time) {
	PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// Fallback counts one deterministic substitution for an artifact.
func Fallback(artifact string) {
	PipelineFallbacks.WithLabelValues(artifact).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Discovery counts a discovery call.
func Discovery(operation string, err error) {
	DiscoveryRequests.WithLabelValues(operation, status(err)).Inc()
}

// Completion counts a completion call.
func Completion(err error) {
	CompletionRequests.WithLabelValues(status(err)).Inc()
}

// JobCompleted counts a completed job and records its duration.
func JobCompleted(taskType string, started time.Time) {
	WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
}

// JobFailed counts a failed job by error code.
func JobFailed(taskType, errorCode string, started time.Time) {
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
	WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
}
