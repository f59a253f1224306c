package llm

import (
	"context"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

var _ ports.ModelGateway = (*Gateway)(nil)

// Gateway adapts the multi-provider Registry to the pipeline's
// ports.ModelGateway boundary. It performs exactly one attempt per
// call: failures are returned to the stage, which handles them by
// omission, and no retry happens at this layer.
type Gateway struct {
	registry *Registry
	options  map[string]any
}

// NewGateway creates a Gateway over the given registry. The options
// map, if non-nil, is passed to every provider call and may carry
// shared parameters such as "temperature" or "max_tokens".
func NewGateway(registry *Registry, options map[string]any) *Gateway {
	return &Gateway{registry: registry, options: options}
}

// Invoke resolves the model identifier and issues one completion
// request, normalizing the result to a ModelResponse.
func (g *Gateway) Invoke(ctx context.Context, model string, messages []domain.Message) (domain.ModelResponse, error) {
	client, bare, err := g.registry.GetClient(model)
	if err != nil {
		return domain.ModelResponse{}, err
	}

	content, tokensIn, tokensOut, err := client.Complete(ctx, messages, g.callOptions(bare))
	if err != nil {
		return domain.ModelResponse{}, err
	}
	return domain.ModelResponse{
		Model:        model,
		Content:      content,
		InputTokens:  tokensIn,
		OutputTokens: tokensOut,
	}, nil
}

// InvokeStream resolves the model identifier and issues one streaming
// request, forwarding tokens through onToken. The returned response
// carries whatever text accumulated, even when err is non-nil, so
// callers can salvage partial output.
func (g *Gateway) InvokeStream(ctx context.Context, model string, messages []domain.Message, onToken func(string)) (domain.ModelResponse, error) {
	client, bare, err := g.registry.GetClient(model)
	if err != nil {
		return domain.ModelResponse{}, err
	}

	content, tokensIn, tokensOut, err := client.CompleteStream(ctx, messages, g.callOptions(bare), onToken)
	return domain.ModelResponse{
		Model:        model,
		Content:      content,
		InputTokens:  tokensIn,
		OutputTokens: tokensOut,
	}, err
}

// callOptions copies the shared options, pinning the per-request model.
func (g *Gateway) callOptions(bareModel string) map[string]any {
	opts := make(map[string]any, len(g.options)+1)
	for k, v := range g.options {
		opts[k] = v
	}
	opts["model"] = bareModel
	return opts
}
