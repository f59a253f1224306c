package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-conclave/internal/domain"
)

const (
	// OpenAIDefaultModel is used when the client config names no model.
	OpenAIDefaultModel = "gpt-4o-mini"
)

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements the CoreLLM interface for OpenAI's chat
// completion API, including incremental streaming for the synthesis
// stage.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	errorClassifier *ErrorClassifier
}

// newOpenAIProvider creates a new OpenAI provider instance from client
// configuration, validating required settings.
func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends a chat completion request and returns the response
// content with token usage.
func (p *openAIProvider) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(messages, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	tokensIn := orEstimate(resp.Usage.PromptTokens, messagesText(messages))
	tokensOut := orEstimate(resp.Usage.CompletionTokens, content)
	return content, tokensIn, tokensOut, nil
}

// DoStream sends a streaming chat completion request, forwarding delta
// tokens through onToken. On mid-stream failure the accumulated prefix
// is returned with the error.
func (p *openAIProvider) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	req := p.buildRequest(messages, options)
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	defer stream.Close()

	var accumulated strings.Builder
	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return accumulated.String(), 0, 0, p.handleError(recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		token := resp.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		accumulated.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}

	content := accumulated.String()
	// The streaming API reports no usage; fall back to estimation.
	return content, EstimateTokens(messagesText(messages)), EstimateTokens(content), nil
}

func (p *openAIProvider) buildRequest(messages []domain.Message, options RequestOptions) openai.ChatCompletionRequest {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if options.System != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:     options.Model,
		Messages:  chatMessages,
		MaxTokens: options.MaxTokens,
	}
	if options.Temperature != nil {
		req.Temperature = float32(clamp(*options.Temperature, 0.0, 2.0))
	}
	return req
}

// handleError normalizes SDK and context errors into ProviderErrors.
func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := fmt.Sprintf("%v", apiErr.Message)
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}
	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}

// messagesText concatenates message contents for token estimation.
func messagesText(messages []domain.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// orEstimate prefers the provider-reported count, falling back to the
// character heuristic when the provider reports zero.
func orEstimate(apiTokens int, text string) int {
	if apiTokens > 0 {
		return apiTokens
	}
	return EstimateTokens(text)
}
