// Package relevance holds the interchangeable topic-relevance strategies.
package relevance

import (
	"context"
	"fmt"
	"strings"

	"NewsRelay/internal/ports"
)

// Strategy names accepted by New.
const (
	Substring = "substring"
	Disabled  = "disabled"
	Embedding = "embedding"
)

// SubstringStrategy matches any keyword as a case-insensitive substring.
// No keywords means everything is relevant.
type SubstringStrategy struct{}

var _ ports.RelevanceStrategy = SubstringStrategy{}

func (SubstringStrategy) Name() string { return Substring }

func (SubstringStrategy) IsRelevant(_ context.Context, text string, keywords []string) (bool, error) {
	if len(keywords) == 0 {
		return true, nil
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true, nil
		}
	}
	return false, nil
}

// DisabledStrategy passes everything.
type DisabledStrategy struct{}

var _ ports.RelevanceStrategy = DisabledStrategy{}

func (DisabledStrategy) Name() string { return Disabled }

func (DisabledStrategy) IsRelevant(context.Context, string, []string) (bool, error) {
	return true, nil
}

// EmbeddingStrategy scores text against each keyword by cosine similarity.
type EmbeddingStrategy struct {
	embedder  ports.Embedder
	threshold float64
	cache     *VectorCache
}

var _ ports.RelevanceStrategy = (*EmbeddingStrategy)(nil)

// NewEmbeddingStrategy requires a similarity strictly above threshold.
func NewEmbeddingStrategy(embedder ports.Embedder, threshold float64) *EmbeddingStrategy {
	return &EmbeddingStrategy{embedder: embedder, threshold: threshold, cache: NewVectorCache(DefaultCacheSize)}
}

func (e *EmbeddingStrategy) Name() string { return Embedding }

func (e *EmbeddingStrategy) IsRelevant(ctx context.Context, text string, keywords []string) (bool, error) {
	if len(keywords) == 0 {
		return true, nil
	}

	textVec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embed text: %w", err)
	}

	for _, kw := range keywords {
		kwVec, ok := e.cache.Get(kw)
		if !ok {
			kwVec, err = e.embedder.Embed(ctx, kw)
			if err != nil {
				return false, fmt.Errorf("embed keyword %q: %w", kw, err)
			}
			e.cache.Put(kw, kwVec)
		}
		if Cosine(textVec, kwVec) > e.threshold {
			return true, nil
		}
	}
	return false, nil
}

// New picks a strategy by configured name.
func New(name string, embedder ports.Embedder, threshold float64) (ports.RelevanceStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Substring:
		return SubstringStrategy{}, nil
	case Disabled:
		return DisabledStrategy{}, nil
	case Embedding:
		if embedder == nil {
			return nil, fmt.Errorf("relevance strategy %s needs an embedder", Embedding)
		}
		return NewEmbeddingStrategy(embedder, threshold), nil
	default:
		return nil, fmt.Errorf("unknown relevance strategy %q", name)
	}
}
