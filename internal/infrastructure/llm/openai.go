package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsRelay/internal/config"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// OpenAIClient implements ports.Summarizer backed by OpenAI-compatible
// chat completion APIs.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Summarizer = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.SummarizerConfig) *OpenAIClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize asks the model for a summary within req.MaxLength characters.
func (c *OpenAIClient) Summarize(ctx context.Context, req ports.SummaryRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("openai client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("openai client misconfigured")
	}

	system, user := Prompt(req)
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"max_tokens":  MaxTokens(req.MaxLength),
		"temperature": 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshal openai payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.TransientError{Op: "openai summarize", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return "", &domain.TransientError{Op: "openai summarize", Err: err}
		}
		return "", err
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return CleanOutput(decoded.Choices[0].Message.Content), nil
}
