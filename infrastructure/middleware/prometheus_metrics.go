// Package middleware provides cross-cutting concerns for the
// deliberation pipeline: metrics collection and stage tracing.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-conclave/internal/ports"
)

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of stage latency, cache
// effectiveness, tier distribution, and token consumption.
type PrometheusMetrics struct {
	stageLatency     *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	valueHistograms  *prometheus.HistogramVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and
// registers all metrics in the given registerer. Passing nil registers
// in the default global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &PrometheusMetrics{
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deliberation_stage_duration_seconds",
				Help:    "Execution time of deliberation pipeline stages.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "tier"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliberation_operations_total",
				Help: "Counts of pipeline events: cache hits/misses, stage outcomes, llm requests and tokens.",
			},
			[]string{"metric", "status", "provider", "model"},
		),
		valueHistograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deliberation_values",
				Help:    "Value distributions: similarity scores, complexity scores, latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deliberation_system_state",
				Help: "Current system state values: cache entries, council size.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records the execution time of a pipeline operation.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.stageLatency.WithLabelValues(operation, labelOr(labels, "tier")).Observe(duration.Seconds())
}

// RecordCounter increments the named counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	pm.operationCounter.WithLabelValues(
		metric,
		labelOr(labels, "status"),
		labelOr(labels, "provider"),
		labelOr(labels, "model"),
	).Add(value)
}

// RecordGauge sets the named gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records a value in the named histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.valueHistograms.WithLabelValues(metric).Observe(value)
}

func labelOr(labels map[string]string, key string) string {
	if labels == nil {
		return "unknown"
	}
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}
