package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/alienxp03/council/internal/core"
)

// Mock is a provider that generates simulated responses. It is used in
// tests and lets the CLI run end to end without API keys.
type Mock struct {
	// ProviderName overrides the default name "mock".
	ProviderName string

	// Delay is how long Generate blocks before responding.
	Delay time.Duration

	// Err, when set, is returned from every Generate call.
	Err error

	// Respond, when set, computes the response text for a request.
	Respond func(req *Request) string
}

// NewMock creates a mock provider with default behavior.
func NewMock() *Mock {
	return &Mock{}
}

// Name returns the provider identifier.
func (p *Mock) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// Generate returns a simulated completion after the configured delay.
func (p *Mock) Generate(ctx context.Context, req *Request) (*core.Completion, error) {
	start := time.Now()

	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &Error{
				Provider: p.Name(),
				Kind:     core.ErrTimeout,
				Message:  "simulated call timed out",
				Err:      ctx.Err(),
			}
		case <-time.After(p.Delay):
		}
	}

	if p.Err != nil {
		return nil, p.Err
	}

	text := ""
	if p.Respond != nil {
		text = p.Respond(req)
	}
	if text == "" {
		text = fmt.Sprintf("Simulated %s response to: %s", p.Name(), truncate(req.Prompt, 60))
	}

	return &core.Completion{
		Text:    text,
		Model:   req.Model,
		Latency: time.Since(start),
	}, nil
}

// ListModels returns the simulated model list.
func (p *Mock) ListModels(ctx context.Context) ([]string, error) {
	return []string{"mock-v1", "mock-v2"}, nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
