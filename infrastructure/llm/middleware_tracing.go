package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-conclave/internal/domain"
)

// tracedLLM wraps requests in OpenTelemetry spans for distributed
// tracing across pipeline stages and providers.
type tracedLLM struct {
	next   CoreLLM
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that records each request as an
// OpenTelemetry span under the given service name.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, tracer: tracer}
	}
}

// DoRequest executes the request within a span carrying model and
// token attributes.
func (t *tracedLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	ctx, span := t.start(ctx, "llm.request", messages)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, messages, opts)
	t.finish(span, tokensIn, tokensOut, err)
	return response, tokensIn, tokensOut, err
}

// DoStream executes the streaming request within a span covering the
// full stream duration.
func (t *tracedLLM) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	ctx, span := t.start(ctx, "llm.stream", messages)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoStream(ctx, messages, opts, onToken)
	t.finish(span, tokensIn, tokensOut, err)
	return response, tokensIn, tokensOut, err
}

func (t *tracedLLM) start(ctx context.Context, name string, messages []domain.Message) (context.Context, trace.Span) {
	var promptLen int
	for _, m := range messages {
		promptLen += len(m.Content)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.model", t.next.GetModel()),
		attribute.Int("llm.messages", len(messages)),
		attribute.Int("llm.prompt.length", promptLen),
	))
}

func (t *tracedLLM) finish(span trace.Span, tokensIn, tokensOut int, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("llm.tokens.input", tokensIn),
		attribute.Int("llm.tokens.output", tokensOut),
	)
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
