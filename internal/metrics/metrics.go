// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the image coordinator and the thumbnail worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "image_server"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Image coordinator operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	thumbnailsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnails_degraded_total",
			Help:      "Uploads and updates that finished without a thumbnail.",
		},
	)

	WorkerTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Thumbnail tasks handled by the worker.",
		},
		[]string{"outcome"},
	)
)

func ObserveOperation(operation, outcome string) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func ThumbnailDegraded() {
	thumbnailsDegraded.Inc()
}
