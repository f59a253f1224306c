package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-conclave/internal/domain"
)

const (
	// GoogleDefaultModel is used when the client config names no model.
	GoogleDefaultModel = "gemini-2.0-flash-exp"
)

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements the CoreLLM interface for Google's Gemini
// API, handling authentication, request formatting, and streaming.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	errorClassifier *ErrorClassifier
}

// newGoogleProvider creates a new Google Gemini provider instance
// authenticated with the configured API key.
func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends a generate-content request and returns the response
// text with token usage.
func (p *googleProvider) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	contents := toGeminiContents(messages, options.System)
	config := p.buildGenerationConfig(options)

	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, config)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := p.usageTokens(resp.UsageMetadata, true, messagesText(messages))
	tokensOut := p.usageTokens(resp.UsageMetadata, false, content)
	return content, tokensIn, tokensOut, nil
}

// DoStream sends a streaming generate-content request, forwarding text
// chunks through onToken. On mid-stream failure the accumulated prefix
// is returned with the error.
func (p *googleProvider) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	contents := toGeminiContents(messages, options.System)
	config := p.buildGenerationConfig(options)

	var accumulated strings.Builder
	var usage *genai.GenerateContentResponseUsageMetadata
	for resp, err := range p.client.Models.GenerateContentStream(ctx, options.Model, contents, config) {
		if err != nil {
			return accumulated.String(), 0, 0, p.handleError(err)
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		accumulated.WriteString(chunk)
		if onToken != nil {
			onToken(chunk)
		}
	}

	content := accumulated.String()
	tokensIn := p.usageTokens(usage, true, messagesText(messages))
	tokensOut := p.usageTokens(usage, false, content)
	return content, tokensIn, tokensOut, nil
}

// usageTokens retrieves a token count from the response metadata,
// falling back to estimation when it is absent.
func (p *googleProvider) usageTokens(usage *genai.GenerateContentResponseUsageMetadata, isInput bool, text string) int {
	if usage != nil {
		if isInput && usage.PromptTokenCount > 0 {
			return int(usage.PromptTokenCount)
		}
		if !isInput && usage.CandidatesTokenCount > 0 {
			return int(usage.CandidatesTokenCount)
		}
	}
	return EstimateTokens(text)
}

// toGeminiContents converts domain messages to Gemini content parts.
// Gemini has no separate system role, so system instructions are
// prepended to the first user turn in a structured format.
func toGeminiContents(messages []domain.Message, system string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for i, m := range messages {
		text := m.Content
		if i == 0 && system != "" {
			text = fmt.Sprintf("System: %s\n\nUser: %s", system, text)
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return contents
}

// buildGenerationConfig maps parsed request options onto Gemini's
// generation configuration, clamping values to supported ranges.
func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if options.Temperature != nil {
		temp := clamp(*options.Temperature, 0.0, 2.0)
		config.Temperature = genai.Ptr(float32(temp))
	}
	if options.MaxTokens > 0 {
		if options.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
	}
	return config
}

// handleError provides structured error handling for Google API
// responses.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	if apiErr, ok := err.(*googleapi.Error); ok {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}
	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}
