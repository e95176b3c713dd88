// Package metrics provides Prometheus metrics for DeltaGlider.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the storage engine.
type Metrics struct {
	// Engine Metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BytesUploaded     *prometheus.CounterVec
	BytesDownloaded   prometheus.Counter
	DeltasWritten     prometheus.Counter
	DeltaDowngrades   prometheus.Counter
	ReferencesCreated prometheus.Counter
	IntegrityFailures prometheus.Counter
	CompressionRatio  prometheus.Histogram

	// Reference Cache Metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheEvictions   prometheus.Counter
	CacheBytes       prometheus.Gauge

	// Store Metrics
	StoreRequestsTotal   *prometheus.CounterVec
	StoreRequestDuration *prometheus.HistogramVec
	StoreRetriesTotal    prometheus.Counter
}

// namespace for all DeltaGlider metrics
const namespace = "deltaglider"

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total number of engine operations.",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Engine operation duration in seconds.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		BytesUploaded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "bytes_uploaded_total",
				Help:      "Physical bytes uploaded to the store by object kind.",
			},
			[]string{"kind"},
		),
		BytesDownloaded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "bytes_downloaded_total",
				Help:      "Physical bytes downloaded from the store.",
			},
		),
		DeltasWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "deltas_written_total",
				Help:      "Objects stored as binary deltas.",
			},
		),
		DeltaDowngrades: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "delta_downgrades_total",
				Help:      "Delta candidates downgraded to direct storage by the ratio cutoff.",
			},
		),
		ReferencesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "references_created_total",
				Help:      "Group references created.",
			},
		),
		IntegrityFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "integrity_failures_total",
				Help:      "Reconstructions that failed hash or length verification.",
			},
		),
		CompressionRatio: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "compression_ratio",
				Help:      "Compression ratio (1 - delta/original) of stored deltas.",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Reference cache hits.",
			},
		),
		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Reference cache misses.",
			},
		),
		CacheEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Reference cache entries evicted.",
			},
		),
		CacheBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "bytes",
				Help:      "Bytes currently held by the reference cache.",
			},
		),

		StoreRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "requests_total",
				Help:      "Requests issued to the object store.",
			},
			[]string{"operation", "status"},
		),
		StoreRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "request_duration_seconds",
				Help:      "Object store request duration in seconds.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		StoreRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "retries_total",
				Help:      "Transient store failures retried.",
			},
		),
	}
}

// Handler returns an HTTP handler exposing the registered metrics for
// embedding processes; the CLI does not serve one.
func Handler() http.Handler {
	return promhttp.Handler()
}
