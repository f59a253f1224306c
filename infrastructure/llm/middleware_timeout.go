package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
)

// timeoutLLM enforces a per-call deadline so a slow endpoint cannot
// stall a pipeline stage indefinitely. The per-call timeout is the only
// bound the pipeline places on an individual gateway call.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces request timeouts.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

// DoRequest executes the request with a timeout context.
func (t *timeoutLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, messages, opts)
}

// DoStream executes the streaming request with a timeout context
// covering the entire stream, not just the first byte.
func (t *timeoutLLM) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoStream(ctx, messages, opts, onToken)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
