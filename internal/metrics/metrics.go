// Package metrics provides Prometheus metrics for AgriSense.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "agrisense"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Ingest metrics
var (
	// IngestReadingsTotal counts readings accepted into the pipeline.
	IngestReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "readings_total",
			Help:      "Total sensor readings received",
		},
		[]string{"transport"}, // http, mqtt
	)

	// IngestRejectedTotal counts readings rejected before storage.
	IngestRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rejected_total",
			Help:      "Total sensor readings rejected",
		},
		[]string{"reason"}, // invalid, rate_limited
	)

	// IngestDevicesActive tracks devices seen by the rate limiter.
	IngestDevicesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "devices_active",
			Help:      "Number of devices with an active rate limiter",
		},
	)
)

// Detector metrics
var (
	// DetectorAlertsTotal counts anomaly alerts by type and severity.
	DetectorAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "alerts_total",
			Help:      "Total anomaly alerts raised",
		},
		[]string{"anomaly_type", "severity"},
	)

	// DetectorSuppressedTotal counts alerts suppressed by cooldown.
	DetectorSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "suppressed_total",
			Help:      "Total alerts suppressed by cooldown",
		},
	)

	// DetectorEvaluationsTotal counts readings evaluated.
	DetectorEvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "evaluations_total",
			Help:      "Total readings evaluated for anomalies",
		},
	)
)

// Advisor metrics
var (
	// AdvisorRecommendationsTotal counts generated recommendations by action.
	AdvisorRecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "recommendations_total",
			Help:      "Total recommendations generated",
		},
		[]string{"action"},
	)

	// AdvisorRewriteErrors counts failed language model rewrites.
	AdvisorRewriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "rewrite_errors_total",
			Help:      "Total failed explanation rewrites",
		},
	)

	// AdvisorRewriteDuration tracks language model rewrite latency.
	AdvisorRewriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "rewrite_duration_seconds",
			Help:      "Explanation rewrite latency in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Buffer metrics
var (
	// BufferPending tracks readings waiting to be flushed.
	BufferPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "pending_readings",
			Help:      "Sensor readings waiting to be flushed to storage",
		},
	)

	// BufferDroppedTotal counts dropped readings due to backpressure.
	BufferDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "dropped_total",
			Help:      "Total readings dropped due to buffer overflow",
		},
	)

	// BufferFlushesTotal counts flush operations.
	BufferFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "flushes_total",
			Help:      "Total buffer flush operations",
		},
	)

	// BufferInsertedTotal counts successfully inserted readings.
	BufferInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "inserted_total",
			Help:      "Total readings inserted to storage",
		},
	)

	// BufferFlushErrors counts flush errors.
	BufferFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "flush_errors_total",
			Help:      "Total buffer flush errors",
		},
	)
)

// Storage metrics
var (
	// StorageQueryDuration tracks query latency.
	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Storage query latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "backend"},
	)

	// StorageErrors counts storage operation errors.
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total storage operation errors",
		},
		[]string{"operation", "backend"},
	)
)

// Auth metrics
var (
	// AuthAttemptsTotal counts authentication attempts.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total authentication attempts",
		},
		[]string{"result"}, // success, failure, locked
	)

	// AuthTokensIssued counts issued tokens.
	AuthTokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total tokens issued",
		},
		[]string{"type"}, // access, refresh
	)
)

// Notifier metrics
var (
	// NotificationsSentTotal counts delivered notifications by channel.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "sent_total",
			Help:      "Total notifications delivered",
		},
		[]string{"channel"},
	)

	// NotificationErrors counts delivery failures by channel.
	NotificationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "errors_total",
			Help:      "Total notification delivery failures",
		},
		[]string{"channel"},
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
