// Package ports defines the boundary interfaces between the
// deliberation pipeline and its infrastructure collaborators.
// Implementations live under infrastructure/; the pipeline depends only
// on these contracts.
package ports

import (
	"context"

	"github.com/ahrav/go-conclave/internal/domain"
)

// ModelGateway issues one timed network request per (model, message-set)
// pair and normalizes the result. The pipeline treats it as an opaque
// remote call: authentication, provider selection, and wire protocol
// are the implementation's concern.
//
// Calls are never retried by the pipeline; a failed call is dropped
// from its stage's result set. The only bound on an individual call's
// duration is the gateway's per-call timeout.
type ModelGateway interface {
	// Invoke sends the message set to the named model and returns the
	// normalized response or an error. The model identifier is
	// provider-qualified, e.g. "openai/gpt-4o".
	Invoke(ctx context.Context, model string, messages []domain.Message) (domain.ModelResponse, error)

	// InvokeStream behaves like Invoke but delivers tokens
	// incrementally through onToken as they arrive. The returned
	// response carries the full accumulated text. A mid-stream failure
	// returns the accumulated text alongside the error so callers can
	// salvage partial output.
	InvokeStream(ctx context.Context, model string, messages []domain.Message, onToken func(token string)) (domain.ModelResponse, error)
}

// TokenEstimator approximates token counts for text where the provider
// does not report exact usage, e.g. streamed synthesis.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) int
}
