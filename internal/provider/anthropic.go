package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/alienxp03/council/internal/core"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicDefaultVersion = "2023-06-01"

	// The messages API requires max_tokens; used when the request
	// doesn't set one.
	anthropicDefaultMaxTokens = 1024
)

// Anthropic implements Provider against Anthropic's messages API.
type Anthropic struct {
	apiKey     string
	baseURL    string
	version    string
	httpClient *http.Client
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(cfg Config) *Anthropic {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = anthropicDefaultVersion
	}
	return &Anthropic{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		version:    version,
		httpClient: cfg.httpClient(),
	}
}

// Name returns the provider identifier.
func (p *Anthropic) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"content"`
	Model string `json:"model"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends a prompt to the messages endpoint.
func (p *Anthropic) Generate(ctx context.Context, req *Request) (*core.Completion, error) {
	if p.apiKey == "" {
		return nil, missingKeyError(p.Name())
	}

	start := time.Now()

	maxTokens := req.Options.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	payload := map[string]any{
		"model":      req.Model,
		"max_tokens": maxTokens,
		"messages": []anthropicMessage{
			{Role: "user", Content: []anthropicContent{{Type: "text", Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if req.Options.Temperature != nil {
		payload["temperature"] = *req.Options.Temperature
	}
	if len(req.Options.Thinking) > 0 {
		payload["thinking"] = req.Options.Thinking
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "marshaling request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "creating request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.version)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(p.Name(), resp.StatusCode, respBody)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, malformedError(p.Name(), "parsing response", err)
	}

	var text, thinking bytes.Buffer
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		}
	}
	if text.Len() == 0 {
		return nil, malformedError(p.Name(), "response contained no text blocks", nil)
	}

	completion := &core.Completion{
		Text:      text.String(),
		Reasoning: thinking.String(),
		Model:     parsed.Model,
		Latency:   time.Since(start),
	}
	if parsed.Usage != nil {
		completion.Usage = &core.Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}
	}
	return completion, nil
}

// ListModels returns the model identifiers available to this API key.
func (p *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	if p.apiKey == "" {
		return nil, missingKeyError(p.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "creating request", Err: err}
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.version)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(p.Name(), resp.StatusCode, respBody)
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, malformedError(p.Name(), "parsing model list", err)
	}

	models := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models, nil
}
