package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/metrics"
	"NewsRelay/internal/ports"
)

const defaultStageTimeout = 2 * time.Minute

// PipelineConfig holds the per-run knobs of the lifecycle machine.
type PipelineConfig struct {
	Query             ports.StoryQuery
	RelevanceKeywords []string
	// MaxStageAttempts caps transient failures at resolution, extraction and relevance.
	MaxStageAttempts int
	// MaxItemsPerRun bounds how many stored items one run advances; zero means all.
	MaxItemsPerRun int
	StageTimeout   time.Duration
}

// PipelineDeps wires all driven adapters into the lifecycle machine.
type PipelineDeps struct {
	Store       ports.ItemStore
	Source      ports.StorySource
	Dedup       *Deduplicator
	Filter      *SourceFilter
	Resolver    ports.URLResolver
	Extractor   ports.ContentExtractor
	Summaries   *SummaryBuilder
	Relevance   ports.RelevanceStrategy
	Publication *PublicationPolicy
	Metrics     *metrics.Metrics
	Config      PipelineConfig
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Pipeline drives items from fetch to a terminal stage, one item at a time.
type Pipeline struct {
	store       ports.ItemStore
	source      ports.StorySource
	dedup       *Deduplicator
	filter      *SourceFilter
	resolver    ports.URLResolver
	extractor   ports.ContentExtractor
	summaries   *SummaryBuilder
	relevance   ports.RelevanceStrategy
	publication *PublicationPolicy
	metrics     *metrics.Metrics
	cfg         PipelineConfig
	now         func() time.Time
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	cfg := deps.Config
	if cfg.MaxStageAttempts <= 0 {
		cfg.MaxStageAttempts = 3
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = defaultStageTimeout
	}
	dedup := deps.Dedup
	if dedup == nil {
		dedup = NewDeduplicator(DedupDeps{Store: deps.Store, Logger: deps.Logger})
	}
	filter := deps.Filter
	if filter == nil {
		filter = NewSourceFilter(FilterRules{})
	}
	summaries := deps.Summaries
	if summaries == nil {
		summaries = NewSummaryBuilder(nil, SummaryConfig{}, deps.Logger)
	}
	return &Pipeline{
		store:       deps.Store,
		source:      deps.Source,
		dedup:       dedup,
		filter:      filter,
		resolver:    deps.Resolver,
		extractor:   deps.Extractor,
		summaries:   summaries,
		relevance:   deps.Relevance,
		publication: deps.Publication,
		metrics:     deps.Metrics,
		cfg:         cfg,
		now:         now,
		logger:      deps.Logger,
	}
}

// RunOnce performs one complete batch pass.
//
// ctx is the stop token: it is checked between items and between stages, and
// an in-flight stage always finishes. A store failure aborts the run.
func (p *Pipeline) RunOnce(ctx context.Context) (RunStats, error) {
	stats := RunStats{RunID: uuid.NewString(), StartedAt: p.now()}
	logger := p.logger
	if logger != nil {
		logger = logger.With("run_id", stats.RunID)
	}

	err := p.runOnce(ctx, &stats, logger)
	stats.Duration = p.now().Sub(stats.StartedAt)
	p.metrics.RecordRun(stats.RunID, stats.Duration, err)
	return stats, err
}

func (p *Pipeline) runOnce(ctx context.Context, stats *RunStats, logger *slog.Logger) error {
	if p.store == nil {
		return errors.New("pipeline has no store")
	}

	if err := p.ingest(ctx, stats, logger); err != nil {
		return err
	}

	filter := ports.ListFilter{Stages: resumableStages()}
	for item, err := range p.store.List(ctx, filter) {
		if ctx.Err() != nil {
			stats.Interrupted = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("list resumable items: %w", err)
		}
		if p.cfg.MaxItemsPerRun > 0 && stats.Processed >= p.cfg.MaxItemsPerRun {
			return nil
		}

		outcome, err := p.Advance(ctx, item)
		stats.Processed++
		if outcome != "" {
			stats.Count(outcome)
			p.metrics.Add(domain.ReasonCode(outcome), 1)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ingest fetches, deduplicates and stores the fresh batch.
func (p *Pipeline) ingest(ctx context.Context, stats *RunStats, logger *slog.Logger) error {
	if p.source == nil || ctx.Err() != nil {
		return nil
	}

	stageCtx, cancel := p.stageContext(ctx)
	raw, err := p.source.Fetch(stageCtx, p.cfg.Query)
	cancel()
	if err != nil {
		if logger != nil {
			logger.Warn("fetch failed, no items this run", "error", err)
		}
		stats.Count("fetch_failed")
		return nil
	}

	now := p.now().UTC()
	batch := make([]domain.Item, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Headline) == "" {
			continue
		}
		batch = append(batch, domain.NewItem(r, now))
	}
	stats.Fetched = len(batch)
	p.metrics.Add("fetched", len(batch))

	// Once fetched, the batch is stored in full even if a stop arrives meanwhile.
	writeCtx := context.WithoutCancel(ctx)
	result, err := p.dedup.Partition(writeCtx, batch)
	if err != nil {
		return fmt.Errorf("deduplicate batch: %w", err)
	}

	for _, dup := range result.Duplicates {
		stats.Count(dup.Reason())
	}
	p.metrics.Add("duplicate", len(result.Duplicates))

	for _, item := range result.Unique {
		item.Advance(domain.StageDedupChecked, "")
		if _, err := p.store.Upsert(writeCtx, item, domain.WriteOnce()); err != nil {
			return fmt.Errorf("store item %s: %w", item.ID, err)
		}
		stats.Unique++
	}

	if logger != nil {
		logger.Debug("batch ingested", "fetched", stats.Fetched, "unique", stats.Unique, "duplicates", len(result.Duplicates))
	}
	return nil
}

// Advance drives one stored item forward until it terminates or must wait.
// The returned outcome names where it stopped; the error is non-nil only for
// store failures.
func (p *Pipeline) Advance(ctx context.Context, item domain.Item) (string, error) {
	for !item.Stage.Terminal() {
		if ctx.Err() != nil {
			return OutcomeInterrupted, nil
		}

		next, outcome, err := p.step(ctx, item)
		if err != nil {
			return outcome, err
		}
		item = next
		if outcome != "" {
			return outcome, nil
		}
	}

	if item.Stage == domain.StageRejected {
		return domain.Reason("rejected", domain.ReasonCode(item.StageReason)), nil
	}
	return string(item.Stage), nil
}

// step runs exactly one stage and persists its result.
// A non-empty outcome means the item stops here for this run.
func (p *Pipeline) step(ctx context.Context, item domain.Item) (domain.Item, string, error) {
	stageCtx, cancel := p.stageContext(ctx)
	defer cancel()

	outcome := ""
	switch item.Stage {
	case domain.StageFetched:
		item.Advance(domain.StageDedupChecked, "")

	case domain.StageDedupChecked:
		decision := p.filter.Evaluate(item)
		item.SourceClass = decision.Class
		if decision.Accept {
			item.Advance(domain.StageFiltered, decision.Reason)
		} else {
			item.Reject(decision.Reason)
		}

	case domain.StageFiltered:
		outcome = p.resolve(stageCtx, &item)

	case domain.StageURLResolved:
		outcome = p.extract(stageCtx, &item)

	case domain.StageScraped:
		if item.Summary == "" {
			item.Summary, item.SummaryOrigin = p.summaries.Build(stageCtx, item)
		}
		item.Advance(domain.StageSummarized, string(item.SummaryOrigin))

	case domain.StageSummarized:
		outcome = p.checkRelevance(stageCtx, &item)

	case domain.StageRelevanceChecked:
		item.Advance(domain.StageReadyToPublish, "")

	case domain.StageReadyToPublish:
		if p.publication == nil {
			return item, OutcomeDeferred, nil
		}
		next, out, err := p.publication.Attempt(stageCtx, item)
		if out == "" {
			out = OutcomeDeferred
		}
		return next, out, err

	default:
		return item, "", fmt.Errorf("item %s has unknown stage %q", item.ID, item.Stage)
	}

	stored, err := p.store.Upsert(context.WithoutCancel(ctx), item, domain.WriteOnce())
	if err != nil {
		return item, outcome, fmt.Errorf("persist %s at %s: %w", item.ID, item.Stage, err)
	}
	if item.Stage == domain.StageRejected && p.logger != nil {
		p.logger.Info("item rejected", "id", item.ID, "reason", item.StageReason, "headline", item.Headline)
	}
	return stored, outcome, nil
}

func (p *Pipeline) resolve(ctx context.Context, item *domain.Item) string {
	if p.resolver == nil {
		item.ResolvedURL = item.RawSourceURL
		item.Advance(domain.StageURLResolved, "")
		return ""
	}

	resolved, err := p.resolver.Resolve(ctx, item.RawSourceURL)
	switch {
	case err == nil && resolved != "":
		item.ResolvedURL = resolved
		item.Advance(domain.StageURLResolved, "")
		return ""
	case err == nil || errors.Is(err, domain.ErrUnresolvable):
		item.Reject(domain.ReasonURLUnresolvable)
		return ""
	}

	item.StageAttempts++
	if item.StageAttempts >= p.cfg.MaxStageAttempts {
		p.warnItem(*item, "resolution attempts exhausted", err)
		item.Reject(domain.Reason(domain.ReasonURLUnresolvable, domain.ReasonAttemptsExhausted))
		return ""
	}
	p.warnItem(*item, "resolution failed, will retry next run", err)
	item.StageReason = domain.Reason(domain.ReasonTransient, "resolve")
	return OutcomeTransient
}

func (p *Pipeline) extract(ctx context.Context, item *domain.Item) string {
	if p.extractor == nil {
		item.Advance(domain.StageScraped, "")
		return ""
	}

	result, err := p.extractor.Extract(ctx, item.ResolvedURL)
	if err == nil {
		item.ExtractedText = result.Text
		item.Extractor = result.Strategy
		item.Advance(domain.StageScraped, result.Strategy)
		return ""
	}

	item.StageAttempts++
	if item.StageAttempts >= p.cfg.MaxStageAttempts {
		p.warnItem(*item, "extraction attempts exhausted, continuing without text", err)
		item.Advance(domain.StageScraped, domain.ReasonExtractionFailed)
		return ""
	}
	p.warnItem(*item, "extraction failed, will retry next run", err)
	item.StageReason = domain.Reason(domain.ReasonTransient, "extract")
	return OutcomeTransient
}

func (p *Pipeline) checkRelevance(ctx context.Context, item *domain.Item) string {
	if item.SourceClass == domain.SourceConfirmed {
		item.Advance(domain.StageRelevanceChecked, domain.ReasonConfirmedSource)
		return ""
	}
	if p.relevance == nil {
		item.Advance(domain.StageRelevanceChecked, "")
		return ""
	}

	text := item.Summary
	if strings.TrimSpace(text) == "" {
		text = item.Headline
	}

	relevant, err := p.relevance.IsRelevant(ctx, text, p.cfg.RelevanceKeywords)
	if err != nil {
		item.StageAttempts++
		if item.StageAttempts >= p.cfg.MaxStageAttempts {
			p.warnItem(*item, "relevance attempts exhausted", err)
			item.Reject(domain.Reason(domain.ReasonNotRelevant, domain.ReasonAttemptsExhausted))
			return ""
		}
		p.warnItem(*item, "relevance check failed, will retry next run", err)
		item.StageReason = domain.Reason(domain.ReasonTransient, "relevance")
		return OutcomeTransient
	}

	if !relevant {
		item.Reject(domain.ReasonNotRelevant)
		return ""
	}
	item.Advance(domain.StageRelevanceChecked, p.relevance.Name())
	return ""
}

// stageContext detaches a stage from the stop token so it can finish, bounded by a timeout.
func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.cfg.StageTimeout)
}

func (p *Pipeline) warnItem(item domain.Item, msg string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "id", item.ID, "stage", item.Stage, "attempts", item.StageAttempts, "error", err)
	}
}

func resumableStages() []domain.Stage {
	var stages []domain.Stage
	for _, st := range domain.Stages() {
		if !st.Terminal() {
			stages = append(stages, st)
		}
	}
	return stages
}
