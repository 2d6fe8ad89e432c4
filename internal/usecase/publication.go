package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// PublicationConfig controls cadence and retry accounting.
type PublicationConfig struct {
	Interval    time.Duration
	MaxAttempts int
	// MaxAge skips items published upstream longer ago; zero disables.
	MaxAge    time.Duration
	DryRun    bool
	MaxLength int
}

// PublicationDeps wires the policy.
type PublicationDeps struct {
	Store     ports.ItemStore
	Publisher ports.Publisher
	Config    PublicationConfig
	Clock     func() time.Time
	Logger    *slog.Logger
}

// PublicationPolicy gates and performs the final post of an item.
type PublicationPolicy struct {
	store     ports.ItemStore
	publisher ports.Publisher
	cfg       PublicationConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewPublicationPolicy constructs the policy.
func NewPublicationPolicy(deps PublicationDeps) *PublicationPolicy {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &PublicationPolicy{
		store:     deps.Store,
		publisher: deps.Publisher,
		cfg:       deps.Config,
		now:       now,
		logger:    deps.Logger,
	}
}

// Attempt tries to publish an item sitting at ready_to_publish.
//
// A deferral caused by the rate limit writes nothing. A posting failure marks
// publish_status=failed and keeps the item at ready_to_publish until
// MaxAttempts is reached. A successful post stamps the item and then the
// rate-limit record; the post is external and cannot be undone, so a failed
// rate-limit write is logged rather than rolled back.
func (p *PublicationPolicy) Attempt(ctx context.Context, item domain.Item) (domain.Item, string, error) {
	if item.Stage != domain.StageReadyToPublish {
		return item, "", fmt.Errorf("publish %s: stage is %s", item.ID, item.Stage)
	}

	now := p.now().UTC()
	// Results are recorded even when the stage deadline or a stop hits after the call.
	writeCtx := context.WithoutCancel(ctx)

	if p.cfg.MaxAge > 0 && !item.PublishedAt.IsZero() && now.Sub(item.PublishedAt) > p.cfg.MaxAge {
		return p.skip(writeCtx, item, domain.ReasonStale)
	}
	if p.cfg.DryRun || p.publisher == nil {
		p.info("dry run, not posting", "id", item.ID, "text", domain.NewPost(item).Fit(p.cfg.MaxLength).Text())
		return p.skip(writeCtx, item, domain.ReasonDryRun)
	}

	rec, found, err := p.store.RateLimitRecord(ctx)
	if err != nil {
		return item, "", fmt.Errorf("read rate limit: %w", err)
	}
	if found && now.Sub(rec.LastPublishedAt) < p.cfg.Interval {
		p.debug("rate limited, deferring", "id", item.ID,
			"next_slot", rec.LastPublishedAt.Add(p.cfg.Interval).Format(time.RFC3339))
		return item, OutcomeDeferred, nil
	}

	post := domain.NewPost(item).Fit(p.cfg.MaxLength)
	if post.Summary != item.Summary {
		p.warn("post truncated to fit limit", "id", item.ID, "limit", p.cfg.MaxLength)
	}

	result, pubErr := p.publisher.Publish(ctx, post)
	if pubErr != nil {
		return p.recordFailure(writeCtx, item, pubErr)
	}

	item.PublishStatus = domain.PublishPublished
	item.PublishedAtTS = now
	item.PostRef = result.Ref
	item.PublishAttempts++
	item.Advance(domain.StagePublished, "")

	stored, upsertErr := p.store.Upsert(writeCtx, item, domain.WriteOnce())
	if upsertErr == nil {
		item = stored
	}
	rateErr := p.store.SetRateLimitRecord(writeCtx, domain.RateLimitRecord{LastPublishedAt: now})

	if rateErr != nil {
		p.logError("posted but rate-limit record not saved; next post may come early",
			"id", item.ID, "post_ref", result.Ref, "error", rateErr)
	}
	if upsertErr != nil {
		p.logError("posted but item state not saved", "id", item.ID, "post_ref", result.Ref, "error", upsertErr)
	}
	p.info("published", "id", item.ID, "publisher", p.publisher.Name(), "post_ref", result.Ref)

	if err := errors.Join(upsertErr, rateErr); err != nil {
		return item, OutcomePublished, fmt.Errorf("commit publish of %s: %w", item.ID, err)
	}
	return item, OutcomePublished, nil
}

func (p *PublicationPolicy) recordFailure(ctx context.Context, item domain.Item, pubErr error) (domain.Item, string, error) {
	class := domain.PublishErrorClass(pubErr)
	reason := domain.Reason(domain.ReasonPublishError, class)

	item.PublishStatus = domain.PublishFailed
	item.PublishAttempts++
	item.StageReason = reason
	outcome := OutcomePublishError
	if p.cfg.MaxAttempts > 0 && item.PublishAttempts >= p.cfg.MaxAttempts {
		item.Advance(domain.StagePublishFailed, reason)
		outcome = OutcomePublishFailed
	}

	p.warn("publish failed", "id", item.ID, "class", class, "attempts", item.PublishAttempts, "error", pubErr)

	stored, err := p.store.Upsert(ctx, item, domain.WriteOnce())
	if err != nil {
		return item, outcome, fmt.Errorf("record publish failure of %s: %w", item.ID, err)
	}
	return stored, outcome, nil
}

func (p *PublicationPolicy) skip(ctx context.Context, item domain.Item, reason string) (domain.Item, string, error) {
	item.PublishStatus = domain.PublishSkipped
	item.Advance(domain.StagePublishSkipped, reason)

	stored, err := p.store.Upsert(ctx, item, domain.WriteOnce())
	if err != nil {
		return item, OutcomePublishSkipped, fmt.Errorf("record skip of %s: %w", item.ID, err)
	}
	return stored, OutcomePublishSkipped, nil
}

func (p *PublicationPolicy) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *PublicationPolicy) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *PublicationPolicy) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *PublicationPolicy) logError(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
