package domain

import (
	"strings"
	"time"

	"NewsRelay/internal/normalize"
)

// Stage enumerates lifecycle milestones of an item.
type Stage string

const (
	StageFetched          Stage = "fetched"
	StageDedupChecked     Stage = "dedup_checked"
	StageFiltered         Stage = "filtered"
	StageURLResolved      Stage = "url_resolved"
	StageScraped          Stage = "scraped"
	StageSummarized       Stage = "summarized"
	StageRelevanceChecked Stage = "relevance_checked"
	StageReadyToPublish   Stage = "ready_to_publish"
	StagePublished        Stage = "published"
	StagePublishFailed    Stage = "publish_failed"
	StagePublishSkipped   Stage = "publish_skipped"
	StageRejected         Stage = "rejected"
)

const terminalRank = 8

var stageRanks = map[Stage]int{
	StageFetched:          0,
	StageDedupChecked:     1,
	StageFiltered:         2,
	StageURLResolved:      3,
	StageScraped:          4,
	StageSummarized:       5,
	StageRelevanceChecked: 6,
	StageReadyToPublish:   7,
	StagePublished:        terminalRank,
	StagePublishFailed:    terminalRank,
	StagePublishSkipped:   terminalRank,
	StageRejected:         terminalRank,
}

// Rank orders stages; unknown stages rank below fetched.
func (s Stage) Rank() int {
	if r, ok := stageRanks[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageRanks[s]
	return ok
}

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s.Rank() == terminalRank
}

// Stages lists every stage in lifecycle order.
func Stages() []Stage {
	return []Stage{
		StageFetched, StageDedupChecked, StageFiltered, StageURLResolved, StageScraped,
		StageSummarized, StageRelevanceChecked, StageReadyToPublish,
		StagePublished, StagePublishFailed, StagePublishSkipped, StageRejected,
	}
}

// PublishStatus tracks the outcome of posting an item.
type PublishStatus string

const (
	PublishUnpublished PublishStatus = "unpublished"
	PublishPublished   PublishStatus = "published"
	PublishFailed      PublishStatus = "failed"
	PublishSkipped     PublishStatus = "skipped"
)

// SourceClass records which allow-list admitted the item.
type SourceClass string

const (
	SourceUnclassified SourceClass = ""
	SourceConfirmed    SourceClass = "confirmed"
	SourceAccepted     SourceClass = "accepted"
)

// SummaryOrigin records how a summary was produced.
type SummaryOrigin string

const (
	SummaryFromModel    SummaryOrigin = "model"
	SummaryFromHeadline SummaryOrigin = "headline"
	SummaryFromVideo    SummaryOrigin = "video"
	SummaryFallback     SummaryOrigin = "fallback"
)

// RawItem is a candidate story as delivered by a story source.
type RawItem struct {
	Headline    string
	URL         string
	SourceName  string
	PublishedAt time.Time
	Byline      string
	Description string
}

// Item is the unit of work flowing through the relay pipeline.
type Item struct {
	ID           string
	Headline     string
	RawSourceURL string
	PublishedAt  time.Time
	SourceName   string
	Byline       string
	Description  string

	ResolvedURL   string
	ExtractedText string
	Extractor     string
	Summary       string
	SummaryOrigin SummaryOrigin
	SourceClass   SourceClass

	Stage         Stage
	StageReason   string
	StageAttempts int

	PublishStatus   PublishStatus
	PublishAttempts int
	PublishedAtTS   time.Time
	PostRef         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem derives a fresh item at the fetched stage.
func NewItem(raw RawItem, now time.Time) Item {
	headline := strings.TrimSpace(raw.Headline)
	source := strings.TrimSpace(raw.SourceName)
	return Item{
		ID:            normalize.StoryID(headline, source),
		Headline:      headline,
		RawSourceURL:  strings.TrimSpace(raw.URL),
		PublishedAt:   raw.PublishedAt,
		SourceName:    source,
		Byline:        strings.TrimSpace(raw.Byline),
		Description:   strings.TrimSpace(raw.Description),
		Stage:         StageFetched,
		PublishStatus: PublishUnpublished,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// LinkURL is the URL a post should point to.
func (i Item) LinkURL() string {
	if i.ResolvedURL != "" {
		return i.ResolvedURL
	}
	return i.RawSourceURL
}

// URLKey is the dedup key of the best known URL, empty when not comparable.
func (i Item) URLKey() string {
	if key := normalize.URLHash(i.ResolvedURL); key != "" {
		return key
	}
	return normalize.URLHash(i.RawSourceURL)
}

// HeadlineKey is the dedup key of the normalized headline.
func (i Item) HeadlineKey() string {
	return normalize.HeadlineHash(i.Headline)
}

// Advance moves the item to next, resetting per-stage bookkeeping.
func (i *Item) Advance(next Stage, reason string) {
	i.Stage = next
	i.StageReason = reason
	i.StageAttempts = 0
}

// Reject moves the item to the terminal rejected stage.
func (i *Item) Reject(reason string) {
	i.Advance(StageRejected, reason)
}

// RateLimitRecord is the singleton holding the last successful publish time.
type RateLimitRecord struct {
	LastPublishedAt time.Time
}

// ResetDerived clears everything computed after dedup so the item is reprocessed.
func (i Item) ResetDerived(now time.Time) Item {
	i.ResolvedURL = ""
	i.ExtractedText = ""
	i.Extractor = ""
	i.Summary = ""
	i.SummaryOrigin = ""
	i.SourceClass = SourceUnclassified
	i.Stage = StageDedupChecked
	i.StageReason = ReasonReset
	i.StageAttempts = 0
	i.PublishStatus = PublishUnpublished
	i.PublishAttempts = 0
	i.PublishedAtTS = time.Time{}
	i.PostRef = ""
	i.UpdatedAt = now
	return i
}
