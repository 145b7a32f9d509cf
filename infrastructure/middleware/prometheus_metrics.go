// Package middleware provides cross-cutting concerns for the dashboard:
// Prometheus metrics and the HTTP handler middleware of the read API.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clamsproject/dashboard/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It provides real-time monitoring of catalog reloads, index size and API
// traffic.
type PrometheusMetrics struct {
	reloadDuration  *prometheus.HistogramVec
	reloads         *prometheus.CounterVec
	entities        *prometheus.GaugeVec
	warnings        *prometheus.GaugeVec
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	operations      *prometheus.CounterVec
	systemGauges    *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		// Catalog metrics.
		reloadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_catalog_reload_duration_seconds",
				Help:    "Time taken to rebuild the repository index.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_catalog_reloads_total",
				Help: "Total number of index rebuilds by outcome.",
			},
			[]string{"outcome"},
		),
		entities: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dashboard_catalog_entities",
				Help: "Number of indexed entities in the current snapshot.",
			},
			[]string{"kind"},
		),
		warnings: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dashboard_catalog_warnings",
				Help: "Number of warnings in the current snapshot.",
			},
			[]string{"kind"},
		),

		// API metrics.
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_http_request_duration_seconds",
				Help:    "Latency of read API requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_http_requests_total",
				Help: "Total number of read API requests by route and status code.",
			},
			[]string{"route", "status"},
		),

		// Fallbacks for metrics without a dedicated collector.
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_operations_total",
				Help: "Total number of other recorded operations.",
			},
			[]string{"operation"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dashboard_system_state",
				Help: "Other recorded state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	switch operation {
	case ports.MetricReload:
		pm.reloadDuration.WithLabelValues(labelOr(labels, "outcome")).Observe(duration.Seconds())
	case ports.MetricHTTPRequest:
		pm.requestDuration.WithLabelValues(labelOr(labels, "route")).Observe(duration.Seconds())
	default:
		pm.operations.WithLabelValues(operation).Inc()
	}
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricReloads:
		pm.reloads.WithLabelValues(labelOr(labels, "outcome")).Add(value)
	case ports.MetricHTTPRequests:
		pm.requests.WithLabelValues(labelOr(labels, "route"), labelOr(labels, "status")).Add(value)
	default:
		pm.operations.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricEntities:
		pm.entities.WithLabelValues(labelOr(labels, "kind")).Set(value)
	case ports.MetricWarnings:
		pm.warnings.WithLabelValues(labelOr(labels, "kind")).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// labelOr returns the label value, or "unknown" when it is missing.
func labelOr(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
