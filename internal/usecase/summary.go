package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/normalize"
	"NewsRelay/internal/ports"
)

const videoPrefix = "Video: "

// SummaryConfig bounds summary construction.
type SummaryConfig struct {
	// MaxLength covers summary, byline suffix and source label; the URL is free.
	MaxLength int
	// RetryCount is the number of extra attempts after an over-length answer.
	RetryCount int
	// MinTextLength below which extracted text is treated as absent.
	MinTextLength int
}

// SummaryBuilder always yields a usable summary for an item.
type SummaryBuilder struct {
	summarizer ports.Summarizer
	cfg        SummaryConfig
	logger     *slog.Logger
}

// NewSummaryBuilder wires the summarization collaborator; nil disables it.
func NewSummaryBuilder(summarizer ports.Summarizer, cfg SummaryConfig, logger *slog.Logger) *SummaryBuilder {
	return &SummaryBuilder{summarizer: summarizer, cfg: cfg, logger: logger}
}

// Build never fails: any collaborator error or persistent over-length answer
// degrades to the headline.
func (b *SummaryBuilder) Build(ctx context.Context, item domain.Item) (string, domain.SummaryOrigin) {
	if normalize.IsVideo(item.LinkURL()) {
		return videoPrefix + item.Headline, domain.SummaryFromVideo
	}

	text := strings.TrimSpace(item.ExtractedText)
	if text == "" || utf8.RuneCountInString(text) < b.cfg.MinTextLength || b.summarizer == nil {
		return item.Headline, domain.SummaryFromHeadline
	}

	budget := domain.SummaryBudget(b.cfg.MaxLength, item.Byline, item.SourceName)
	if budget <= 0 {
		return item.Headline, domain.SummaryFallback
	}

	attempts := 1 + max(b.cfg.RetryCount, 0)
	for attempt := range attempts {
		summary, err := b.summarizer.Summarize(ctx, ports.SummaryRequest{
			Headline:  item.Headline,
			Text:      text,
			MaxLength: budget,
			Brevity:   attempt,
		})
		if err != nil {
			b.warn("summarizer failed, using headline", "id", item.ID, "attempt", attempt+1, "error", err)
			return item.Headline, domain.SummaryFallback
		}

		summary = strings.Join(strings.Fields(summary), " ")
		length := utf8.RuneCountInString(summary)
		if summary != "" && length <= budget {
			return summary, domain.SummaryFromModel
		}
		b.debug("summary over budget", "id", item.ID, "attempt", attempt+1, "length", length, "budget", budget)
	}

	b.warn("summary still over budget after retries, using headline", "id", item.ID, "attempts", attempts)
	return item.Headline, domain.SummaryFallback
}

func (b *SummaryBuilder) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *SummaryBuilder) warn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
