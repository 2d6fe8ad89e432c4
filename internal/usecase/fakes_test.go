package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/infrastructure/storage"
	"NewsRelay/internal/ports"
)

var errBackendDown = errors.New("connection refused")

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, time.May, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore fails selected operations with a store error.
type flakyStore struct {
	*storage.MemoryStore
	failLookups   bool
	failUpserts   bool
	failRateWrite bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore()}
}

func unavailable(op string) error {
	return &domain.StoreError{Op: op, Err: errBackendDown}
}

func (s *flakyStore) Exists(ctx context.Context, id string) (bool, error) {
	if s.failLookups {
		return false, unavailable("exists")
	}
	return s.MemoryStore.Exists(ctx, id)
}

func (s *flakyStore) Upsert(ctx context.Context, item domain.Item, preserve domain.FieldSet) (domain.Item, error) {
	if s.failUpserts {
		return domain.Item{}, unavailable("upsert")
	}
	return s.MemoryStore.Upsert(ctx, item, preserve)
}

func (s *flakyStore) SetRateLimitRecord(ctx context.Context, rec domain.RateLimitRecord) error {
	if s.failRateWrite {
		return unavailable("rate limit set")
	}
	return s.MemoryStore.SetRateLimitRecord(ctx, rec)
}

type staticSource struct {
	items []domain.RawItem
	err   error
}

func (s *staticSource) Fetch(context.Context, ports.StoryQuery) ([]domain.RawItem, error) {
	return s.items, s.err
}

type mapResolver struct {
	fail  map[string]error
	calls int
}

func (r *mapResolver) Resolve(_ context.Context, raw string) (string, error) {
	r.calls++
	if err, ok := r.fail[raw]; ok {
		return "", err
	}
	return strings.Replace(raw, "https://news.example/rss/", "https://publisher.example/", 1), nil
}

type textExtractor struct {
	text string
	err  error
}

func (e *textExtractor) Extract(context.Context, string) (ports.Extraction, error) {
	if e.err != nil {
		return ports.Extraction{}, e.err
	}
	return ports.Extraction{Text: e.text, Strategy: "fake"}, nil
}

type scriptedSummarizer struct {
	replies []string
	err     error
	calls   []ports.SummaryRequest
}

func (s *scriptedSummarizer) Summarize(_ context.Context, req ports.SummaryRequest) (string, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	idx := min(len(s.calls)-1, len(s.replies)-1)
	return s.replies[idx], nil
}

type keywordRelevance struct{}

func (keywordRelevance) Name() string { return "substring" }

func (keywordRelevance) IsRelevant(_ context.Context, text string, keywords []string) (bool, error) {
	if len(keywords) == 0 {
		return true, nil
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, nil
		}
	}
	return false, nil
}

type recordingPublisher struct {
	posts []domain.Post
	err   error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, post domain.Post) (ports.PublishResult, error) {
	if p.err != nil {
		return ports.PublishResult{}, p.err
	}
	p.posts = append(p.posts, post)
	return ports.PublishResult{Ref: "post-" + string(rune('0'+len(p.posts)))}, nil
}

type constSimilarity struct {
	score float64
}

func (constSimilarity) Name() string  { return "const" }
func (constSimilarity) Enabled() bool { return true }

func (s constSimilarity) Similarity(context.Context, string, string) (float64, error) {
	return s.score, nil
}

type echoSummarizer struct{}

func (echoSummarizer) Summarize(_ context.Context, req ports.SummaryRequest) (string, error) {
	return "In brief: " + req.Headline, nil
}
