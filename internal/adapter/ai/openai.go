package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sumgit/sumgit/internal/port"
)

// OpenAIConfig holds the configuration for the OpenAI chat-completions endpoint.
type OpenAIConfig struct {
	BaseURL string // e.g. https://api.openai.com/v1
	Model   string // e.g. gpt-4o-mini
	APIKey  string
	Timeout time.Duration // default per-request limit when the request carries none
}

// OpenAIClient implements port.LLMClient against the OpenAI REST API or
// any compatible chat-completions endpoint.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-backed LLM client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// ModelName returns the chat model identifier.
func (o *OpenAIClient) ModelName() string {
	return o.cfg.Model
}

// Complete sends one chat-completion request and returns the raw content.
// The call is cancelled when the request's timeout expires; a cancellation
// surfaces as context.DeadlineExceeded for the caller to classify.
func (o *OpenAIClient) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = o.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := map[string]interface{}{
		"model": o.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.SystemPrompt},
			{"role": "user", "content": req.UserMessage},
		},
	}
	if req.JSONResponse {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := o.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", fmt.Errorf("openai complete: %w", err)
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("openai complete decode: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// post is a helper for POST requests to the configured endpoint.
// Non-2xx responses surface as *port.StatusError so the caller can
// classify by status code.
func (o *OpenAIClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		// Unwrap url.Error so deadline expiry stays recognizable upstream.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &port.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
