package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsRelay/internal/config"
	"NewsRelay/internal/extraction"
	"NewsRelay/internal/infrastructure/bluesky"
	"NewsRelay/internal/infrastructure/embedding"
	"NewsRelay/internal/infrastructure/extractor"
	"NewsRelay/internal/infrastructure/feed"
	"NewsRelay/internal/infrastructure/gemini"
	"NewsRelay/internal/infrastructure/llm"
	"NewsRelay/internal/infrastructure/resolver"
	"NewsRelay/internal/infrastructure/scheduler"
	"NewsRelay/internal/infrastructure/telegram"
	"NewsRelay/internal/logging"
	"NewsRelay/internal/metrics"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/relevance"
	"NewsRelay/internal/similarity"
	"NewsRelay/internal/usecase"
)

// RunOptions overrides the runner section of the configuration.
type RunOptions struct {
	Interval      time.Duration
	MaxIterations int
	StopOnError   bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    Store
	metrics  *metrics.Metrics
	pipeline *usecase.Pipeline
	closers  []func()
}

// New opens the store and builds every adapter named by cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := OpenStore(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger, store: store, metrics: metrics.New()}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			baseLogger.Warn("close store", "error", err)
		}
	})

	pipeline, err := a.buildPipeline(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = pipeline
	return a, nil
}

func (a *Application) buildPipeline(ctx context.Context) (*usecase.Pipeline, error) {
	cfg := a.cfg
	log := a.logger

	source := feed.NewGoogleNews(cfg.Fetch.Endpoint, seconds(cfg.Fetch.TimeoutSeconds), log.With("component", "feed"))
	urlResolver := resolver.NewGoogleNews("", nil, log.With("component", "resolver"))

	contentExtractor, err := extractor.New(extractor.Config{
		Timeout:    seconds(cfg.Scrape.TimeoutSeconds),
		Retries:    cfg.Scrape.Retries,
		RetryDelay: time.Duration(cfg.Scrape.RetryDelaySeconds * float64(time.Second)),
		UserAgent:  cfg.Scrape.UserAgent,
		Strategies: cfg.Scrape.Strategies,
	}, extraction.DefaultRegistry(), nil, log.With("component", "extractor"))
	if err != nil {
		return nil, err
	}

	summarizer, err := a.buildSummarizer(ctx)
	if err != nil {
		return nil, err
	}

	var embedder ports.Embedder
	if cfg.Embedding.Host != "" {
		embedder = embedding.NewClient(cfg.Embedding.Host, cfg.Embedding.Model)
	}

	relevanceStrategy, err := relevance.New(cfg.Relevance.Strategy, embedder, cfg.Relevance.Threshold)
	if err != nil {
		return nil, err
	}

	var similarityStrategy ports.SimilarityStrategy = similarity.Disabled{}
	if cfg.Dedup.Semantic.Enabled && embedder != nil {
		similarityStrategy = similarity.NewEmbedding(embedder)
	}

	publisher, err := a.buildPublisher()
	if err != nil {
		return nil, err
	}

	dedup := usecase.NewDeduplicator(usecase.DedupDeps{
		Store:       a.store,
		Similarity:  similarityStrategy,
		Threshold:   cfg.Dedup.Semantic.Threshold,
		RecentLimit: cfg.Dedup.Semantic.RecentLimit,
		Logger:      log.With("component", "dedup"),
	})

	publication := usecase.NewPublicationPolicy(usecase.PublicationDeps{
		Store:     a.store,
		Publisher: publisher,
		Config: usecase.PublicationConfig{
			Interval:    cfg.Publish.PostInterval(),
			MaxAttempts: cfg.Publish.MaxAttempts,
			MaxAge:      cfg.Publish.MaxAge(),
			DryRun:      cfg.Publish.DryRun,
			MaxLength:   cfg.Summarizer.MaxLength,
		},
		Logger: log.With("component", "publication"),
	})

	log.Info("pipeline configured",
		"query", cfg.Fetch.Query,
		"summarizer", cfg.Summarizer.Provider,
		"relevance", relevanceStrategy.Name(),
		"similarity", similarityStrategy.Name(),
		"publisher", cfg.Publish.Provider,
		"dry_run", cfg.Publish.DryRun,
	)

	return usecase.NewPipeline(usecase.PipelineDeps{
		Store:     a.store,
		Source:    source,
		Dedup:     dedup,
		Filter: usecase.NewSourceFilter(usecase.FilterRules{
			ConfirmedSources:       cfg.Filter.ConfirmedSources,
			AcceptedSources:        cfg.Filter.AcceptedSources,
			BannedHeadlineKeywords: cfg.Filter.BannedHeadlineKeywords,
			BannedURLKeywords:      cfg.Filter.BannedURLKeywords,
		}),
		Resolver:  urlResolver,
		Extractor: contentExtractor,
		Summaries: usecase.NewSummaryBuilder(summarizer, usecase.SummaryConfig{
			MaxLength:     cfg.Summarizer.MaxLength,
			RetryCount:    cfg.Summarizer.RetryCount,
			MinTextLength: cfg.Scrape.MinTextLength,
		}, log.With("component", "summary")),
		Relevance:   relevanceStrategy,
		Publication: publication,
		Metrics:     a.metrics,
		Config: usecase.PipelineConfig{
			Query: ports.StoryQuery{
				Query:    cfg.Fetch.Query,
				Lookback: cfg.Fetch.Lookback(),
				Language: cfg.Fetch.Language,
				Country:  cfg.Fetch.Country,
			},
			RelevanceKeywords: cfg.Relevance.Keywords,
			MaxStageAttempts:  cfg.Pipeline.MaxStageAttempts,
			MaxItemsPerRun:    cfg.Pipeline.MaxItemsPerRun,
			StageTimeout:      seconds(cfg.Pipeline.StageTimeoutSeconds),
		},
		Logger: log.With("component", "pipeline"),
	}), nil
}

func (a *Application) buildSummarizer(ctx context.Context) (ports.Summarizer, error) {
	cfg := a.cfg.Summarizer
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case config.SummarizerOpenAI:
		return llm.NewOpenAIClient(cfg), nil
	case config.SummarizerGemini:
		client, err := gemini.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	default:
		return nil, nil
	}
}

func (a *Application) buildPublisher() (ports.Publisher, error) {
	switch a.cfg.Publish.Provider {
	case config.PublisherBluesky:
		return bluesky.NewPublisher(a.cfg.Bluesky, a.cfg.Publish.Language, a.logger.With("component", "bluesky")), nil
	case config.PublisherTelegram:
		return telegram.NewPublisher(a.cfg.Telegram), nil
	case config.PublisherNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown publisher %q", a.cfg.Publish.Provider)
	}
}

// RunOnce performs a single pipeline iteration.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunStats, error) {
	stop := a.serveMonitoring(ctx)
	defer stop()

	stats, err := a.pipeline.RunOnce(ctx)
	a.logger.Info("iteration finished", stats.LogArgs()...)
	return stats, err
}

// Run drives the pipeline on an interval until ctx is cancelled.
func (a *Application) Run(ctx context.Context, opts RunOptions) error {
	stop := a.serveMonitoring(ctx)
	defer stop()

	a.logger.Info("runner started",
		"interval", opts.Interval.String(),
		"max_iterations", opts.MaxIterations,
		"stop_on_error", opts.StopOnError,
	)
	driver := scheduler.NewIntervalScheduler(opts.Interval, opts.MaxIterations)
	runner := usecase.NewRunner(driver, a.pipeline, usecase.RunnerConfig{StopOnError: opts.StopOnError}, a.logger.With("component", "runner"))
	return runner.Run(ctx)
}

// serveMonitoring exposes /health and /metrics when a listen address is set.
func (a *Application) serveMonitoring(ctx context.Context) func() {
	addr := a.cfg.Monitoring.ListenAddr
	if addr == "" {
		return func() {}
	}

	srv := &http.Server{Addr: addr, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("monitoring listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("monitoring server stopped", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// Close releases the store and any client connections.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
