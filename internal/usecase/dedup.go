package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Duplicate strategies, reported as duplicate:<strategy>.
const (
	DupStoryID  = "story_id"
	DupURL      = "url"
	DupHeadline = "headline"
	DupBatch    = "batch"
	DupSemantic = "semantic"
)

// Duplicate is a batch member matched by one of the strategies.
type Duplicate struct {
	Item     domain.Item
	Strategy string
}

// Reason renders the stage reason recorded for the duplicate.
func (d Duplicate) Reason() string {
	return domain.Reason(domain.ReasonDuplicate, d.Strategy)
}

// DedupResult partitions a batch, preserving batch order on both sides.
type DedupResult struct {
	Unique     []domain.Item
	Duplicates []Duplicate
}

// DedupDeps wires the engine.
type DedupDeps struct {
	Store      ports.ItemStore
	Similarity ports.SimilarityStrategy
	// Threshold is exclusive: a score equal to it is not a duplicate.
	Threshold   float64
	RecentLimit int
	Logger      *slog.Logger
}

// Deduplicator splits fresh batches into unique and duplicate items.
type Deduplicator struct {
	store       ports.ItemStore
	similarity  ports.SimilarityStrategy
	threshold   float64
	recentLimit int
	logger      *slog.Logger
}

// NewDeduplicator constructs the engine.
func NewDeduplicator(deps DedupDeps) *Deduplicator {
	return &Deduplicator{
		store:       deps.Store,
		similarity:  deps.Similarity,
		threshold:   deps.Threshold,
		recentLimit: deps.RecentLimit,
		logger:      deps.Logger,
	}
}

type batchKeys struct {
	ids       map[string]struct{}
	urls      map[string]struct{}
	headlines map[string]struct{}
}

func (k batchKeys) claimed(item domain.Item) bool {
	if _, ok := k.ids[item.ID]; ok {
		return true
	}
	if h := item.URLKey(); h != "" {
		if _, ok := k.urls[h]; ok {
			return true
		}
	}
	if h := item.HeadlineKey(); h != "" {
		if _, ok := k.headlines[h]; ok {
			return true
		}
	}
	return false
}

func (k batchKeys) claim(item domain.Item) {
	k.ids[item.ID] = struct{}{}
	if h := item.URLKey(); h != "" {
		k.urls[h] = struct{}{}
	}
	if h := item.HeadlineKey(); h != "" {
		k.headlines[h] = struct{}{}
	}
}

// Partition checks every item against the store and the batch itself.
//
// Checks run in order story_id, url, headline, batch, semantic and the first
// match wins. Any store failure aborts the whole partition: a store that
// cannot answer never means "no duplicates".
func (d *Deduplicator) Partition(ctx context.Context, batch []domain.Item) (DedupResult, error) {
	var result DedupResult
	keys := batchKeys{
		ids:       map[string]struct{}{},
		urls:      map[string]struct{}{},
		headlines: map[string]struct{}{},
	}

	var recent []string
	recentLoaded := false

	for _, item := range batch {
		strategy, err := d.storeMatch(ctx, item)
		if err != nil {
			return DedupResult{}, err
		}

		if strategy == "" && keys.claimed(item) {
			strategy = DupBatch
		}

		if strategy == "" && d.semanticEnabled() {
			if !recentLoaded {
				recent, err = d.store.RecentHeadlines(ctx, d.recentLimit)
				if err != nil {
					return DedupResult{}, fmt.Errorf("load recent headlines: %w", err)
				}
				recentLoaded = true
			}
			if d.semanticMatch(ctx, item, result.Unique, recent) {
				strategy = DupSemantic
			}
		}

		if strategy != "" {
			result.Duplicates = append(result.Duplicates, Duplicate{Item: item, Strategy: strategy})
			d.debug("duplicate", "id", item.ID, "strategy", strategy, "headline", item.Headline)
			continue
		}

		keys.claim(item)
		result.Unique = append(result.Unique, item)
	}

	return result, nil
}

func (d *Deduplicator) storeMatch(ctx context.Context, item domain.Item) (string, error) {
	exists, err := d.store.Exists(ctx, item.ID)
	if err != nil {
		return "", fmt.Errorf("check id %s: %w", item.ID, err)
	}
	if exists {
		return DupStoryID, nil
	}

	if h := item.URLKey(); h != "" {
		hit, err := d.store.HasURLHash(ctx, h)
		if err != nil {
			return "", fmt.Errorf("check url of %s: %w", item.ID, err)
		}
		if hit {
			return DupURL, nil
		}
	}

	if h := item.HeadlineKey(); h != "" {
		hit, err := d.store.HasHeadlineHash(ctx, h)
		if err != nil {
			return "", fmt.Errorf("check headline of %s: %w", item.ID, err)
		}
		if hit {
			return DupHeadline, nil
		}
	}

	return "", nil
}

func (d *Deduplicator) semanticEnabled() bool {
	return d.similarity != nil && d.similarity.Enabled()
}

func (d *Deduplicator) semanticMatch(ctx context.Context, item domain.Item, unique []domain.Item, recent []string) bool {
	candidates := make([]string, 0, len(unique)+len(recent))
	for _, u := range unique {
		candidates = append(candidates, u.Headline)
	}
	candidates = append(candidates, recent...)

	for _, other := range candidates {
		score, err := d.similarity.Similarity(ctx, item.Headline, other)
		if err != nil {
			d.warn("similarity failed, treating as distinct", "id", item.ID, "strategy", d.similarity.Name(), "error", err)
			return false
		}
		if score > d.threshold {
			return true
		}
	}
	return false
}

func (d *Deduplicator) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Deduplicator) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
