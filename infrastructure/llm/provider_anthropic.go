package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/go-conclave/internal/domain"
)

const (
	// AnthropicDefaultModel is used when the client config names no model.
	AnthropicDefaultModel = "claude-3-5-sonnet-20241022"
)

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements the CoreLLM interface for Anthropic's
// Messages API, including server-sent-event streaming.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	errorClassifier *ErrorClassifier
}

// newAnthropicProvider creates a new Anthropic provider instance and
// validates that required configuration is present.
func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          anthropic.NewClient(opts...),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends a Messages API request and returns the response text
// with token usage.
func (p *anthropicProvider) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	params := p.buildParams(messages, options)

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}
	content := responseText.String()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := orEstimate(int(message.Usage.InputTokens), messagesText(messages))
	tokensOut := orEstimate(int(message.Usage.OutputTokens), content)
	return content, tokensIn, tokensOut, nil
}

// DoStream sends a streaming Messages API request, forwarding text
// deltas through onToken. On mid-stream failure the accumulated prefix
// is returned with the error.
func (p *anthropicProvider) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	params := p.buildParams(messages, options)

	stream := p.client.Messages.NewStreaming(ctx, params)
	var accumulated strings.Builder
	var message anthropic.Message
	for stream.Next() {
		event := stream.Current()
		// Accumulate keeps usage metadata current across events.
		_ = message.Accumulate(event)
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				accumulated.WriteString(deltaVariant.Text)
				if onToken != nil {
					onToken(deltaVariant.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return accumulated.String(), 0, 0, p.handleError(err)
	}

	content := accumulated.String()
	tokensIn := orEstimate(int(message.Usage.InputTokens), messagesText(messages))
	tokensOut := orEstimate(int(message.Usage.OutputTokens), content)
	return content, tokensIn, tokensOut, nil
}

func (p *anthropicProvider) buildParams(messages []domain.Message, options RequestOptions) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages:  toAnthropicMessages(messages),
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(clamp(*options.Temperature, 0.0, 1.0))
	}
	if options.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.System}}
	}
	return params
}

// toAnthropicMessages converts domain messages to SDK message params.
// System-role messages are handled separately through params.System, so
// only user and assistant turns appear here.
func toAnthropicMessages(messages []domain.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

// handleError normalizes SDK and context errors into ProviderErrors.
func (p *anthropicProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return p.errorClassifier.ClassifyHTTPError(anthropicErr.StatusCode, anthropicErr.Error(), err)
	}
	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
