package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-conclave/internal/ports"
)

var _ ports.StageObserver = (*OTelStageObserver)(nil)

// OTelStageObserver implements observability for deliberation stages
// using OpenTelemetry tracing. Each stage becomes a span carrying its
// name and duration; stage-terminal errors are recorded on the span.
type OTelStageObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelStageObserver creates a stage observer that emits spans under
// the given service name and, when metrics is non-nil, mirrors stage
// latency into the metrics collector.
func NewOTelStageObserver(serviceName string, metrics ports.MetricsCollector) *OTelStageObserver {
	return &OTelStageObserver{
		metrics: metrics,
		tracer:  otel.Tracer(serviceName),
	}
}

// StageStart opens a span for the stage and returns the span context
// plus a completion callback that finalizes the span.
func (o *OTelStageObserver) StageStart(ctx context.Context, stage string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "deliberation."+stage,
		trace.WithAttributes(attribute.String("pipeline.stage", stage)))

	return ctx, func(err error) {
		defer span.End()

		elapsed := time.Since(start)
		if o.metrics != nil {
			o.metrics.RecordLatency(stage, elapsed, nil)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetAttributes(attribute.Int64("pipeline.stage.duration_ms", elapsed.Milliseconds()))
	}
}
