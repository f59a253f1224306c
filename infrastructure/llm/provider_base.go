package llm

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// Default request parameters shared by all providers.
const (
	// DefaultMaxTokens bounds generation length when the caller does
	// not specify one.
	DefaultMaxTokens = 4096
	// DefaultRequestTimeout bounds a single provider call when the
	// client config leaves Timeout unset.
	DefaultRequestTimeout = 120 * time.Second
)

// BaseProvider provides common, thread-safe functionality for all LLM
// providers, primarily for managing the model name.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the model currently configured for the provider.
// It is safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name for the provider.
// It is safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the standardized set of request parameters parsed
// from the free-form options map.
type RequestOptions struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	MaxTokens int
	// Model overrides the provider's configured model for this request.
	Model string
	// Temperature controls output randomness; nil uses the provider
	// default.
	Temperature *float64
	// System provides system-role instructions for the request.
	System string
}

// ParseRequestOptions extracts known request parameters from an options
// map, applying defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens),
		Model:     extractString(opts, "model", defaultModel),
		System:    extractString(opts, "system", ""),
	}
	if temp, ok := extractFloat(opts, "temperature"); ok && temp >= 0 && temp <= 2 {
		options.Temperature = &temp
	}
	return options
}

func extractInt(opts map[string]any, key string, fallback int) int {
	if opts == nil {
		return fallback
	}
	switch v := opts[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}

func extractString(opts map[string]any, key, fallback string) string {
	if opts == nil {
		return fallback
	}
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func extractFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// EstimateTokens is the shared fallback estimate used when a provider
// reports no usage data. It assumes roughly four characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ValidateBaseURL checks that a custom endpoint override is a
// well-formed http(s) URL and returns it in normalized form.
func ValidateBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", NewProviderError("config", ErrorTypeBadRequest, 0,
			"base URL must use http or https", nil)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// ValidateTimeout clamps a configured timeout to a sane range,
// substituting the default for non-positive values.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultRequestTimeout
	}
	return timeout
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
