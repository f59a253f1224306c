package ports

import "time"

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations should integrate with observability
// platforms like Prometheus or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// Useful for tracking events like cache hits/misses and errors.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, e.g. response
	// sizes or similarity scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
