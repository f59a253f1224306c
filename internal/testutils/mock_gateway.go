// Package testutils provides deterministic test doubles for the
// deliberation pipeline.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/ahrav/go-conclave/internal/domain"
)

// Script tells a MockGateway how to answer one model. When Err is
// non-nil every call to that model fails. Responses are consumed in
// order; the last one repeats once the script runs out.
type Script struct {
	Responses []string
	Err       error

	// StreamCut makes streaming calls stop after emitting this many
	// tokens, returning the accumulated partial content together
	// with Err. Zero streams the full response.
	StreamCut int

	InputTokens  int
	OutputTokens int
}

// MockGateway is a scripted, deterministic ports.ModelGateway for
// tests. It records every call so tests can assert which stages
// invoked which models and how often.
type MockGateway struct {
	mu sync.Mutex

	scripts map[string]*Script
	calls   map[string]int

	// Prompts keeps the last prompt each model received.
	prompts map[string]string
}

// NewMockGateway builds a gateway with no scripts; unscripted models
// echo a canned acknowledgment.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		scripts: make(map[string]*Script),
		calls:   make(map[string]int),
		prompts: make(map[string]string),
	}
}

// Respond scripts a model with a fixed sequence of responses.
func (g *MockGateway) Respond(model string, responses ...string) *MockGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[model] = &Script{Responses: responses, InputTokens: 10, OutputTokens: 20}
	return g
}

// Fail scripts a model to return err on every call.
func (g *MockGateway) Fail(model string, err error) *MockGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[model] = &Script{Err: err}
	return g
}

// Set installs a full script for a model.
func (g *MockGateway) Set(model string, script Script) *MockGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[model] = &script
	return g
}

// Invoke implements ports.ModelGateway.
func (g *MockGateway) Invoke(ctx context.Context, model string, messages []domain.Message) (domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.ModelResponse{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.calls[model]
	g.calls[model] = n + 1
	if len(messages) > 0 {
		g.prompts[model] = messages[len(messages)-1].Content
	}

	script, ok := g.scripts[model]
	if !ok {
		return domain.ModelResponse{
			Model:        model,
			Content:      "ack from " + model,
			InputTokens:  1,
			OutputTokens: 1,
		}, nil
	}
	if script.Err != nil {
		return domain.ModelResponse{}, script.Err
	}
	if len(script.Responses) == 0 {
		return domain.ModelResponse{Model: model}, nil
	}

	idx := min(n, len(script.Responses)-1)
	return domain.ModelResponse{
		Model:        model,
		Content:      script.Responses[idx],
		InputTokens:  script.InputTokens,
		OutputTokens: script.OutputTokens,
	}, nil
}

// InvokeStream implements ports.ModelGateway, splitting the scripted
// response into word-sized tokens. A script with StreamCut set emits
// the leading tokens only, then returns the partial content and the
// scripted error, mirroring a provider dropping mid-stream.
func (g *MockGateway) InvokeStream(ctx context.Context, model string, messages []domain.Message, onToken func(string)) (domain.ModelResponse, error) {
	g.mu.Lock()
	script := g.scripts[model]
	g.mu.Unlock()

	if script == nil || script.StreamCut <= 0 {
		resp, err := g.Invoke(ctx, model, messages)
		if err != nil {
			return domain.ModelResponse{}, err
		}
		if onToken != nil {
			for _, word := range strings.SplitAfter(resp.Content, " ") {
				onToken(word)
			}
		}
		return resp, nil
	}

	if err := ctx.Err(); err != nil {
		return domain.ModelResponse{}, err
	}

	g.mu.Lock()
	n := g.calls[model]
	g.calls[model] = n + 1
	if len(messages) > 0 {
		g.prompts[model] = messages[len(messages)-1].Content
	}
	g.mu.Unlock()

	content := ""
	if len(script.Responses) > 0 {
		content = script.Responses[min(n, len(script.Responses)-1)]
	}
	words := strings.SplitAfter(content, " ")
	if script.StreamCut < len(words) {
		words = words[:script.StreamCut]
	}

	var partial strings.Builder
	for _, word := range words {
		if onToken != nil {
			onToken(word)
		}
		partial.WriteString(word)
	}
	return domain.ModelResponse{Model: model, Content: partial.String()}, script.Err
}

// Calls reports how many times a model was invoked.
func (g *MockGateway) Calls(model string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[model]
}

// TotalCalls reports the total invocation count across all models.
func (g *MockGateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

// LastPrompt returns the most recent prompt sent to a model.
func (g *MockGateway) LastPrompt(model string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[model]
}
