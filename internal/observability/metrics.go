package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpRequestsTotal       *prometheus.CounterVec
	httpLatencySeconds      *prometheus.HistogramVec
	submissionsReceived     *prometheus.CounterVec
	submissionReplacements  prometheus.Counter
	blobOperationsTotal     *prometheus.CounterVec
	joinCodeCollisionsTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classdesk_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classdesk_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		submissionsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classdesk_submissions_received_total",
			Help: "Total number of submissions accepted, by type.",
		}, []string{"type"})

		submissionReplacements = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classdesk_submission_replacements_total",
			Help: "Total number of submissions that replaced a prior one.",
		})

		blobOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classdesk_blob_operations_total",
			Help: "Total number of blob store operations, by operation and outcome.",
		}, []string{"op", "status"})

		joinCodeCollisionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classdesk_join_code_collisions_total",
			Help: "Total number of join code uniqueness collisions requiring a redraw.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			submissionsReceived,
			submissionReplacements,
			blobOperationsTotal,
			joinCodeCollisionsTotal,
		)
	})
}

// HTTPRequests exposes the counter for served HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// SubmissionsReceived exposes the counter for accepted submissions.
func SubmissionsReceived() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsReceived
}

// SubmissionReplacements exposes the counter for replace-style submissions.
func SubmissionReplacements() prometheus.Counter {
	RegisterMetrics()
	return submissionReplacements
}

// BlobOperations exposes the counter for blob store operations.
func BlobOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return blobOperationsTotal
}

// JoinCodeCollisions exposes the counter for join code redraws.
func JoinCodeCollisions() prometheus.Counter {
	RegisterMetrics()
	return joinCodeCollisionsTotal
}
