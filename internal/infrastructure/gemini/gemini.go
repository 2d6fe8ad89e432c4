// Package gemini summarizes articles with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"NewsRelay/internal/config"
	"NewsRelay/internal/infrastructure/llm"
	"NewsRelay/internal/ports"
)

const defaultModel = "gemini-1.5-flash"

// generateFunc is one model call with fully rendered instructions.
type generateFunc func(ctx context.Context, system, user string, maxTokens int32) (string, error)

// Client implements ports.Summarizer on top of the Gemini API.
type Client struct {
	client   *genai.Client
	generate generateFunc
}

var _ ports.Summarizer = (*Client)(nil)

// NewClient creates a Gemini client for the configured model.
func NewClient(ctx context.Context, cfg config.SummarizerConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" || strings.HasPrefix(modelName, "gpt-") {
		modelName = defaultModel
	}

	c := &Client{client: client}
	c.generate = func(ctx context.Context, system, user string, maxTokens int32) (string, error) {
		model := client.GenerativeModel(modelName)
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
		model.SetTemperature(0.3)
		model.SetMaxOutputTokens(maxTokens)

		resp, err := model.GenerateContent(ctx, genai.Text(user))
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		return responseText(resp)
	}
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Summarize renders the shared summary prompt and asks Gemini for a summary.
func (c *Client) Summarize(ctx context.Context, req ports.SummaryRequest) (string, error) {
	if c == nil || c.generate == nil {
		return "", errors.New("gemini client is not initialized")
	}
	system, user := llm.Prompt(req)
	text, err := c.generate(ctx, system, user, int32(llm.MaxTokens(req.MaxLength)))
	if err != nil {
		return "", err
	}
	return llm.CleanOutput(text), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini response has no text")
	}
	return b.String(), nil
}
