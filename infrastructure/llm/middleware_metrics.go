package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// metricsLLM collects request metrics: latency, token usage, and error
// rates per provider and model.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that records request metrics
// through the given collector.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector}
	}
}

// DoRequest executes the request while recording latency, status, and
// token counters.
func (m *metricsLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, messages, opts)
	m.record(ctx, "request", start, tokensIn, tokensOut, err)
	return response, tokensIn, tokensOut, err
}

// DoStream executes the streaming request while recording latency,
// status, and token counters for the whole stream.
func (m *metricsLLM) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoStream(ctx, messages, opts, onToken)
	m.record(ctx, "stream", start, tokensIn, tokensOut, err)
	return response, tokensIn, tokensOut, err
}

func (m *metricsLLM) record(ctx context.Context, kind string, start time.Time, tokensIn, tokensOut int, err error) {
	if m.collector == nil {
		return
	}

	labels := map[string]string{
		"provider": m.extractProvider(),
		"model":    m.next.GetModel(),
		"kind":     kind,
		"status":   "success",
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrCircuitOpen):
			labels["status"] = "circuit_open"
		case ctx.Err() == context.DeadlineExceeded:
			labels["status"] = "timeout"
		default:
			labels["status"] = "error"
		}
	}

	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		labels["token_type"] = "input"
		m.collector.RecordCounter("llm_tokens_total", float64(tokensIn), labels)
		labels["token_type"] = "output"
		m.collector.RecordCounter("llm_tokens_total", float64(tokensOut), labels)
	}
}

// extractProvider infers the provider name from the model identifier
// when it carries a "provider/" prefix.
func (m *metricsLLM) extractProvider() string {
	model := m.next.GetModel()
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return "unknown"
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
