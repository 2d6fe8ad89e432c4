// Package embedding talks to an Ollama-compatible embeddings service.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Client requests text embeddings over HTTP.
type Client struct {
	endpoint string
	model    string
	http     *http.Client
}

var _ ports.Embedder = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, model string) *Client {
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	return &Client{
		endpoint: endpoint,
		model:    model,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Embed returns the embedding vector of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.endpoint == "" {
		return nil, errors.New("embedding endpoint is not configured")
	}

	payload := map[string]any{
		"model":  c.model,
		"prompt": text,
	}

	var resp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := c.post(ctx, "/api/embeddings", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding")
	}
	return resp.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransientError{Op: "embed", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &domain.TransientError{Op: "embed", Err: errors.New(resp.Status)}
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
