package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapgate_sync_queries_total",
			Help: "Total number of synchronous queries by outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tapgate_query_duration_seconds",
			Help:    "Wall-clock engine execution latency for synchronous queries.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	jobSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapgate_job_submissions_total",
			Help: "Total number of asynchronous job submissions by driver.",
		},
		[]string{"driver"},
	)
	jobPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapgate_job_polls_total",
			Help: "Total number of job status polls by reported phase.",
		},
		[]string{"phase"},
	)
	batchJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapgate_batch_jobs_total",
			Help: "Total number of batch worker job cycles by outcome.",
		},
		[]string{"outcome"},
	)
	jobsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapgate_jobs_reaped_total",
			Help: "Total number of expired jobs removed by the janitor.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		syncQueriesTotal,
		queryDurationSeconds,
		jobSubmissionsTotal,
		jobPollsTotal,
		batchJobsTotal,
		jobsReaped,
	)
}

func ObserveSyncQuery(outcome string, elapsed time.Duration) {
	syncQueriesTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementJobSubmission(driverName string) {
	jobSubmissionsTotal.WithLabelValues(driverName).Inc()
}

func IncrementJobPoll(phase string) {
	jobPollsTotal.WithLabelValues(phase).Inc()
}

func IncrementBatchJob(outcome string) {
	batchJobsTotal.WithLabelValues(outcome).Inc()
}

func AddJobsReaped(count int) {
	if count > 0 {
		jobsReaped.Add(float64(count))
	}
}
