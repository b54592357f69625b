// Package provider contains LLM provider abstractions and HTTP implementations.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/alienxp03/council/internal/core"
)

// Request represents one generation request to a provider.
type Request struct {
	// System is the system prompt, empty for none.
	System string

	// Prompt is the user-facing input text.
	Prompt string

	// Model is the model identifier. Must not be empty.
	Model string

	// Options carries generation settings, including opaque
	// extended-reasoning tables forwarded verbatim to the vendor.
	Options core.GenerationOptions
}

// Provider defines the interface for LLM providers. Implementations
// make exactly one outbound call per Generate invocation; retry policy
// belongs to the caller.
type Provider interface {
	// Name returns the provider's identifier (e.g. "openai").
	Name() string

	// Generate sends a request and returns the completion.
	// Failures are reported as *Error.
	Generate(ctx context.Context, req *Request) (*core.Completion, error)
}

// ModelLister is implemented by providers that can enumerate their
// available models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Config holds the settings shared by the HTTP providers.
type Config struct {
	// APIKey authenticates requests. An empty key fails at call time
	// with an auth error rather than at construction.
	APIKey string

	// BaseURL overrides the vendor's default endpoint.
	BaseURL string

	// HTTPClient overrides the default client. Timeouts are governed
	// by the request context, not the client.
	HTTPClient *http.Client

	// Version is the vendor API version header, where applicable.
	Version string
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Registry manages available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing any provider
// with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// Has checks if a provider with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// Names returns the names of all registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// List returns all registered providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}
