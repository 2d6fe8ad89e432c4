package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"NewsRelay/internal/ports"
)

// maxInputRunes caps the article text sent to a model.
const maxInputRunes = 4000

// Prompt renders the system and user messages for a summary request. Each
// step of Brevity asks for a tighter summary.
func Prompt(req ports.SummaryRequest) (system, user string) {
	instruction := fmt.Sprintf("in under %d characters", req.MaxLength)
	switch {
	case req.Brevity == 1:
		instruction += ". Be very concise"
	case req.Brevity >= 2:
		instruction += ". Be extremely brief and concise"
	}

	system = fmt.Sprintf("You are a news summarizer. Summarize the article %s. "+
		"Focus on the key facts and main points. Do not include bylines, source names, "+
		"or URLs in your summary as they will be added separately.", instruction)
	user = fmt.Sprintf("Article title: %s\n\nArticle text: %s", req.Headline, clip(req.Text, maxInputRunes))
	return system, user
}

// MaxTokens is a conservative completion budget for the character limit.
func MaxTokens(maxLength int) int {
	return max(16, min(150, maxLength/3))
}

// CleanOutput trims whitespace and wrapping quotes a model sometimes adds.
func CleanOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
