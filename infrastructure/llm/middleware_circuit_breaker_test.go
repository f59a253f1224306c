package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
)

// scriptedCore is a minimal CoreLLM for middleware tests.
type scriptedCore struct {
	model string
	err   error
	calls int
}

func (s *scriptedCore) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	s.calls++
	if s.err != nil {
		return "", 0, 0, s.err
	}
	return "ok", 1, 1, nil
}

func (s *scriptedCore) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	return s.DoRequest(ctx, messages, opts)
}

func (s *scriptedCore) GetModel() string  { return s.model }
func (s *scriptedCore) SetModel(m string) { s.model = m }

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	core := &scriptedCore{err: errors.New("boom")}
	wrapped := CircuitBreakerMiddleware(3, time.Hour)(core)

	ctx := context.Background()
	for range 3 {
		_, _, _, err := wrapped.DoRequest(ctx, nil, nil)
		require.Error(t, err)
	}

	_, _, _, err := wrapped.DoRequest(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, core.calls, "open circuit must not reach the endpoint")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	core := &scriptedCore{err: errors.New("boom")}
	wrapped := CircuitBreakerMiddleware(3, time.Hour)(core)

	ctx := context.Background()
	_, _, _, err := wrapped.DoRequest(ctx, nil, nil)
	require.Error(t, err)
	_, _, _, err = wrapped.DoRequest(ctx, nil, nil)
	require.Error(t, err)

	core.err = nil
	_, _, _, err = wrapped.DoRequest(ctx, nil, nil)
	require.NoError(t, err)

	core.err = errors.New("boom again")
	for range 2 {
		_, _, _, err = wrapped.DoRequest(ctx, nil, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen, "two failures after a success must not trip a threshold of three")
	}
}

func TestCircuitBreaker_HalfOpenProbeAfterCooldown(t *testing.T) {
	core := &scriptedCore{err: errors.New("boom")}
	wrapped := CircuitBreakerMiddleware(1, 10*time.Millisecond)(core)

	ctx := context.Background()
	_, _, _, err := wrapped.DoRequest(ctx, nil, nil)
	require.Error(t, err)

	_, _, _, err = wrapped.DoRequest(ctx, nil, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)

	time.Sleep(20 * time.Millisecond)
	core.err = nil

	_, _, _, err = wrapped.DoRequest(ctx, nil, nil)
	assert.NoError(t, err, "probe after cooldown should pass through and close the circuit")
}

func TestSplitModelID(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		bare     string
		ok       bool
	}{
		{"openai/gpt-4o", "openai", "gpt-4o", true},
		{"anthropic/claude-3-5-sonnet-20241022", "anthropic", "claude-3-5-sonnet-20241022", true},
		{"meta/llama/3.1-70b", "meta", "llama/3.1-70b", true},
		{"no-slash", "", "", false},
		{"/leading", "", "", false},
		{"trailing/", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			provider, bare, ok := splitModelID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.bare, bare)
		})
	}
}

func TestRegistry_UnknownProviderRejected(t *testing.T) {
	registry := NewRegistry(RegistryConfig{Providers: map[string]ClientConfig{}})

	_, _, err := registry.GetClient("nobody/some-model")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestRegistry_MalformedModelIDRejected(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})

	_, _, err := registry.GetClient("just-a-model")
	assert.ErrorIs(t, err, ErrUnknownModel)
}
