package ports

import (
	"context"
	"iter"
	"time"

	"NewsRelay/internal/domain"
)

// ListFilter narrows List results; zero values match everything.
type ListFilter struct {
	Stages        []domain.Stage
	PublishStatus domain.PublishStatus
	IDPrefix      string
	Limit         int
	PageSize      int
}

// ItemStore persists items, the duplicate index and the rate-limit record.
//
// Every failure other than "absent" unwraps to domain.ErrStoreUnavailable.
type ItemStore interface {
	Get(ctx context.Context, id string) (domain.Item, bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, item domain.Item, preserve domain.FieldSet) (domain.Item, error)
	List(ctx context.Context, filter ListFilter) iter.Seq2[domain.Item, error]
	HasURLHash(ctx context.Context, hash string) (bool, error)
	HasHeadlineHash(ctx context.Context, hash string) (bool, error)
	RecentHeadlines(ctx context.Context, limit int) ([]string, error)
	RateLimitRecord(ctx context.Context) (domain.RateLimitRecord, bool, error)
	SetRateLimitRecord(ctx context.Context, rec domain.RateLimitRecord) error
}

// ItemAdmin exposes explicit operator actions outside the pipeline.
type ItemAdmin interface {
	Reset(ctx context.Context, id string) (domain.Item, error)
	Delete(ctx context.Context, id string) error
}

// StoryQuery parameterizes a story source fetch.
type StoryQuery struct {
	Query    string
	Lookback time.Duration
	Language string
	Country  string
}

// StorySource supplies raw candidate items from a search feed.
type StorySource interface {
	Fetch(ctx context.Context, q StoryQuery) ([]domain.RawItem, error)
}

// URLResolver turns an aggregator link into the publisher's URL.
// Permanent failures wrap domain.ErrUnresolvable.
type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Extraction is the outcome of a content extraction.
type Extraction struct {
	Text     string
	Strategy string
}

// ContentExtractor returns article text, possibly empty; errors are hard I/O failures.
type ContentExtractor interface {
	Extract(ctx context.Context, resolvedURL string) (Extraction, error)
}

// SummaryRequest carries one summarization attempt.
type SummaryRequest struct {
	Headline  string
	Text      string
	MaxLength int
	// Brevity grows with each retry; 0 is the plain instruction.
	Brevity int
}

// Summarizer produces a summary of article text.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// RelevanceStrategy decides whether text matches the configured topic.
type RelevanceStrategy interface {
	Name() string
	IsRelevant(ctx context.Context, text string, keywords []string) (bool, error)
}

// SimilarityStrategy scores how close two headlines are, in [0,1].
type SimilarityStrategy interface {
	Name() string
	Enabled() bool
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// PublishResult describes an accepted post.
type PublishResult struct {
	Ref string
}

// Publisher posts rendered content to a social endpoint.
// Failures should be *domain.PublishError.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, post domain.Post) (PublishResult, error)
}

// Scheduler controls when iterations execute.
type Scheduler interface {
	Run(ctx context.Context, job func(ctx context.Context, iteration int) error) error
}
