// Package llm provides a unified interface for interacting with various
// LLM providers with built-in support for rate limiting, circuit
// breaking, metrics, and tracing.
//
// The package abstracts multiple providers (OpenAI, Anthropic, Google)
// behind a common chat-message interface while adding cross-cutting
// concerns through a middleware pattern. The deliberation pipeline
// consumes it through the Gateway type, which implements
// ports.ModelGateway and routes provider-qualified model identifiers
// ("openai/gpt-4o") to the right client.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o",
//	})
//	content, in, out, err := client.Complete(ctx, domain.UserMessage("Hello"), nil)
//
// Usage with middleware:
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-sonnet-4.5",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(rate.Limit(20), 40),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	        llm.MetricsMiddleware(collector),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must
// implement. It abstracts the core request/stream functionality so the
// middleware system can wrap any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a message set to the provider and returns the
	// response text with input and output token counts. The opts map
	// carries provider-tunable parameters such as "temperature" and
	// "max_tokens".
	DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// DoStream sends a message set and delivers response tokens through
	// onToken as they arrive. It returns the full accumulated text.
	// On a mid-stream failure the accumulated prefix is returned
	// alongside the error.
	DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(token string)) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model used for subsequent requests.
	SetModel(model string)
}

// ClientConfig holds all configuration options for creating an LLM
// client, centralizing provider settings and middleware wiring.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use for requests.
	Model string

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the default.
	BaseURL string

	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration

	// TokenEstimator provides custom token counting logic for
	// responses where the provider reports no usage. If nil, a
	// character-based estimator is used.
	TokenEstimator ports.TokenEstimator

	// Middleware is applied in the order specified; the first entry
	// becomes the outermost wrapper.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting
// functionality such as rate limiting, circuit breaking, metrics, or
// tracing without modifying provider logic.
type Middleware func(CoreLLM) CoreLLM

// Client is a single-provider LLM client with its middleware chain
// applied. The Gateway composes Clients into the pipeline's
// ports.ModelGateway boundary.
type Client struct {
	core      CoreLLM
	estimator ports.TokenEstimator
}

// NewClient creates an LLM client for the given provider type,
// assembling the middleware chain and validating configuration.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse order so the first middleware is the
	// outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewCharacterBasedTokenEstimator(0)
	}

	return &Client{core: core, estimator: estimator}, nil
}

// Complete sends a message set and returns the response text with
// token usage.
func (c *Client) Complete(ctx context.Context, messages []domain.Message, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, messages, options)
}

// CompleteStream sends a message set and streams tokens through
// onToken, returning the accumulated text and token usage.
func (c *Client) CompleteStream(ctx context.Context, messages []domain.Message, options map[string]any, onToken func(string)) (string, int, int, error) {
	return c.core.DoStream(ctx, messages, options, onToken)
}

// EstimateTokens returns an approximate token count for the given text
// using the configured estimator.
func (c *Client) EstimateTokens(text string) int {
	return c.estimator.EstimateTokens(text)
}

// GetModel returns the configured model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM implementation from configuration.
// The factory registry lets providers self-register in init without the
// client knowing their implementation details.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom LLM provider factory,
// enabling extension with additional providers without modifying the
// core package.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
