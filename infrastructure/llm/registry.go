// Package llm registry: centralized multi-provider client management.
//
// The deliberation pipeline addresses models by provider-qualified
// identifiers ("openai/gpt-4o", "anthropic/claude-sonnet-4.5",
// "google/gemini-2.5-pro"). The Registry resolves those identifiers to
// configured clients, creating them lazily and caching them per
// provider/model pair so a council of N models costs N client
// constructions over the process lifetime, not per run.
package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Environment variables consulted by NewRegistryFromEnv for each
// provider's credentials.
var providerEnvKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GEMINI_API_KEY",
}

// RegistryConfig configures provider credentials and shared client
// settings for a Registry.
type RegistryConfig struct {
	// Providers maps provider type to its base client configuration.
	// The Model field of each entry is ignored; models come from the
	// qualified identifiers passed to GetClient.
	Providers map[string]ClientConfig

	// Timeout is applied to every created client unless the provider's
	// entry specifies its own.
	Timeout time.Duration

	// Middleware is appended to every created client's chain, after
	// any provider-specific middleware.
	Middleware []Middleware
}

// Registry resolves provider-qualified model identifiers to clients.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	config  RegistryConfig
	clients map[string]*Client
}

// NewRegistry creates a Registry from explicit provider configuration.
func NewRegistry(config RegistryConfig) *Registry {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRequestTimeout
	}
	return &Registry{
		config:  config,
		clients: make(map[string]*Client),
	}
}

// NewRegistryFromEnv creates a Registry with credentials read from the
// conventional environment variables. Providers whose variable is
// unset are simply absent; resolving a model for a missing provider
// returns an error at call time.
func NewRegistryFromEnv(timeout time.Duration, middleware ...Middleware) *Registry {
	providers := make(map[string]ClientConfig)
	for provider, envKey := range providerEnvKeys {
		if key := os.Getenv(envKey); key != "" {
			providers[provider] = ClientConfig{APIKey: key}
		}
	}
	return NewRegistry(RegistryConfig{
		Providers:  providers,
		Timeout:    timeout,
		Middleware: middleware,
	})
}

// GetClient resolves a provider-qualified model identifier to a client
// and the bare model name to pass per request. Identifiers must be of
// the form "provider/model"; the model part may itself contain slashes.
func (r *Registry) GetClient(model string) (*Client, string, error) {
	provider, bare, ok := splitModelID(model)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}

	key := provider + "/" + bare

	r.mu.RLock()
	client, found := r.clients[key]
	r.mu.RUnlock()
	if found {
		return client, bare, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, found = r.clients[key]; found {
		return client, bare, nil
	}

	base, configured := r.config.Providers[provider]
	if !configured {
		return nil, "", fmt.Errorf("%w: no credentials configured for provider %q", ErrUnknownModel, provider)
	}

	clientConfig := base
	clientConfig.Model = bare
	if clientConfig.Timeout <= 0 {
		clientConfig.Timeout = r.config.Timeout
	}
	clientConfig.Middleware = append(append([]Middleware{}, base.Middleware...), r.config.Middleware...)

	created, err := NewClient(provider, clientConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	r.clients[key] = created
	return created, bare, nil
}

// Providers returns the provider types this registry has credentials
// for, in no particular order.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.config.Providers))
	for provider := range r.config.Providers {
		out = append(out, provider)
	}
	return out
}

// splitModelID splits "provider/model" into its parts.
func splitModelID(model string) (provider, bare string, ok bool) {
	idx := strings.Index(model, "/")
	if idx <= 0 || idx == len(model)-1 {
		return "", "", false
	}
	return model[:idx], model[idx+1:], true
}
