package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/alienxp03/council/internal/core"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini implements Provider against Google's generateContent API.
type Gemini struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGemini creates a Gemini provider.
func NewGemini(cfg Config) *Gemini {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &Gemini{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
	}
}

// Name returns the provider identifier.
func (p *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	ModelVersion  string `json:"modelVersion"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends a prompt to the generateContent endpoint.
func (p *Gemini) Generate(ctx context.Context, req *Request) (*core.Completion, error) {
	if p.apiKey == "" {
		return nil, missingKeyError(p.Name())
	}

	start := time.Now()

	payload := map[string]any{
		"contents": []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		payload["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	generationConfig := map[string]any{}
	if req.Options.Temperature != nil {
		generationConfig["temperature"] = *req.Options.Temperature
	}
	if req.Options.MaxOutputTokens > 0 {
		generationConfig["maxOutputTokens"] = req.Options.MaxOutputTokens
	}
	if len(generationConfig) > 0 {
		payload["generationConfig"] = generationConfig
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "marshaling request", Err: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, req.Model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "creating request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, malformedError(p.Name(), "parsing response", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, malformedError(p.Name(), "response contained no candidates", nil)
	}

	var text bytes.Buffer
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return nil, malformedError(p.Name(), "candidate contained no text", nil)
	}

	completion := &core.Completion{
		Text:    text.String(),
		Model:   parsed.ModelVersion,
		Latency: time.Since(start),
	}
	if parsed.UsageMetadata != nil {
		completion.Usage = &core.Usage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  parsed.UsageMetadata.TotalTokenCount,
		}
	}
	return completion, nil
}

// ListModels returns the model identifiers available to this API key.
func (p *Gemini) ListModels(ctx context.Context) ([]string, error) {
	if p.apiKey == "" {
		return nil, missingKeyError(p.Name())
	}

	url := fmt.Sprintf("%s/models?key=%s", p.baseURL, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "creating request", Err: err}
	}

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
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, malformedError(p.Name(), "parsing model list", err)
	}

	models := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		name := strings.TrimPrefix(m.Name, "models/")
		if name != "" {
			models = append(models, name)
		}
	}
	sort.Strings(models)
	return models, nil
}
