package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"NewsRelay/internal/config"
	"NewsRelay/internal/ports"
)

func TestSummarizeUsesSharedPrompt(t *testing.T) {
	t.Parallel()

	var gotSystem, gotUser string
	var gotTokens int32
	c := &Client{generate: func(_ context.Context, system, user string, maxTokens int32) (string, error) {
		gotSystem, gotUser, gotTokens = system, user, maxTokens
		return " \"Ferry service resumes.\"\n", nil
	}}

	summary, err := c.Summarize(context.Background(), ports.SummaryRequest{Headline: "Ferry", Text: "body", MaxLength: 120, Brevity: 2})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "Ferry service resumes." {
		t.Fatalf("unexpected summary %q", summary)
	}
	if !strings.Contains(gotSystem, "extremely brief") || !strings.Contains(gotUser, "Article title: Ferry") || gotTokens != 40 {
		t.Fatalf("unexpected call: %q %q %d", gotSystem, gotUser, gotTokens)
	}
}

func TestSummarizePropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota")
	c := &Client{generate: func(context.Context, string, string, int32) (string, error) { return "", boom }}
	if _, err := c.Summarize(context.Background(), ports.SummaryRequest{MaxLength: 100}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestResponseText(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Harbour "), genai.Text("reopens.")}},
	}}}
	if got, err := responseText(resp); err != nil || got != "Harbour reopens." {
		t.Fatalf("unexpected text %q (%v)", got, err)
	}
	if _, err := responseText(&genai.GenerateContentResponse{}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(context.Background(), config.SummarizerConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
