// Package metrics declares the Prometheus collectors of the server. They
// register with the default registry, exposed by the HTTP server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "doctree"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// FileOperations counts store/delete/rename outcomes.
	FileOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_operations_total",
			Help:      "File operations by kind and result.",
		},
		[]string{"operation", "result"},
	)

	// OrphanBlobs counts superseded blobs that could not be removed.
	OrphanBlobs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphan_blobs_total",
		Help:      "Blobs left behind after a failed cleanup.",
	})

	ArchiveEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_entries_total",
		Help:      "Files written into zip archives.",
	})

	ArchiveBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_bytes_total",
		Help:      "Uncompressed bytes written into zip archives.",
	})

	DirectoryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "directory_cache_hits_total",
		Help:      "Directory cache hits.",
	})

	DirectoryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "directory_cache_misses_total",
		Help:      "Directory cache misses.",
	})
)

// Result labels for FileOperations.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

func ObserveFileOperation(operation string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	FileOperations.WithLabelValues(operation, result).Inc()
}
