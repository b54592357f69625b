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

const openaiDefaultBaseURL = "https://api.openai.com/v1"

// OpenAI implements Provider against OpenAI's responses API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg Config) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
	}
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string { return "openai" }

type openaiMessage struct {
	Role    string          `json:"role"`
	Content []openaiContent `json:"content"`
}

type openaiContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openaiResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Model string `json:"model"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends a prompt to the responses endpoint.
func (p *OpenAI) Generate(ctx context.Context, req *Request) (*core.Completion, error) {
	if p.apiKey == "" {
		return nil, missingKeyError(p.Name())
	}

	start := time.Now()

	input := make([]openaiMessage, 0, 2)
	if req.System != "" {
		input = append(input, openaiMessage{
			Role:    "system",
			Content: []openaiContent{{Type: "text", Text: req.System}},
		})
	}
	input = append(input, openaiMessage{
		Role:    "user",
		Content: []openaiContent{{Type: "text", Text: req.Prompt}},
	})

	payload := map[string]any{
		"model": req.Model,
		"input": input,
	}
	if req.Options.MaxOutputTokens > 0 {
		payload["max_output_tokens"] = req.Options.MaxOutputTokens
	}
	if req.Options.Temperature != nil {
		payload["temperature"] = *req.Options.Temperature
	}
	if len(req.Options.Reasoning) > 0 {
		payload["reasoning"] = req.Options.Reasoning
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "marshaling request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "creating request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var parsed openaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, malformedError(p.Name(), "parsing response", err)
	}

	text := parsed.OutputText
	if text == "" {
		var buf bytes.Buffer
		for _, item := range parsed.Output {
			for _, content := range item.Content {
				buf.WriteString(content.Text)
			}
		}
		text = buf.String()
	}
	if text == "" {
		return nil, malformedError(p.Name(), "response contained no output text", nil)
	}

	completion := &core.Completion{
		Text:    text,
		Model:   parsed.Model,
		Latency: time.Since(start),
	}
	if parsed.Usage != nil {
		completion.Usage = &core.Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}
	}
	return completion, nil
}

// ListModels returns the model identifiers available to this API key.
func (p *OpenAI) ListModels(ctx context.Context) ([]string, error) {
	if p.apiKey == "" {
		return nil, missingKeyError(p.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: core.ErrUnknown, Message: "creating request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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
