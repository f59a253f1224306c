package ports

import "context"

// StageObserver receives notifications around each pipeline stage so
// implementations can attach tracing spans or custom bookkeeping.
type StageObserver interface {
	// StageStart is called when a stage begins. It returns a context
	// to run the stage under (typically carrying a span) and a
	// completion callback invoked with the stage's terminal error, or
	// nil on success.
	StageStart(ctx context.Context, stage string) (context.Context, func(err error))
}

// NopStageObserver is a no-op StageObserver for wiring without tracing.
type NopStageObserver struct{}

// StageStart implements StageObserver with no effect.
func (NopStageObserver) StageStart(ctx context.Context, stage string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
