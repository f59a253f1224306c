package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-conclave/internal/domain"
)

// rateLimitedLLM applies token-bucket rate limiting to requests so
// concurrent fan-out stages cannot exceed a provider's request quota.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that limits request rate using
// a token bucket. The limit parameter sets the sustained requests per
// second, and burst allows temporary spikes above the sustained rate.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

// DoRequest blocks until the limiter grants a slot, then forwards the
// request. Context cancellation while waiting aborts the call.
func (r *rateLimitedLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, err
	}
	return r.next.DoRequest(ctx, messages, opts)
}

// DoStream blocks until the limiter grants a slot, then forwards the
// streaming request. A stream counts as one request regardless of how
// many tokens it delivers.
func (r *rateLimitedLLM) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, err
	}
	return r.next.DoStream(ctx, messages, opts, onToken)
}

// GetModel returns the model name from the wrapped implementation.
func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
