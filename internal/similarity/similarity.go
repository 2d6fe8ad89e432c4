// Package similarity provides the semantic-duplicate strategies used by dedup.
package similarity

import (
	"context"
	"fmt"
	"strings"

	"NewsRelay/internal/ports"
	"NewsRelay/internal/relevance"
)

// Disabled never reports similarity.
type Disabled struct{}

var _ ports.SimilarityStrategy = Disabled{}

func (Disabled) Name() string  { return "disabled" }
func (Disabled) Enabled() bool { return false }

func (Disabled) Similarity(context.Context, string, string) (float64, error) {
	return 0, nil
}

// Embedding compares headline embeddings by cosine similarity.
type Embedding struct {
	embedder ports.Embedder
	cache    *relevance.VectorCache
}

var _ ports.SimilarityStrategy = (*Embedding)(nil)

// NewEmbedding wraps an embedder; vectors are cached per normalized headline,
// up to relevance.DefaultCacheSize entries.
func NewEmbedding(embedder ports.Embedder) *Embedding {
	return NewEmbeddingWithCache(embedder, relevance.DefaultCacheSize)
}

// NewEmbeddingWithCache is NewEmbedding with an explicit cache bound.
func NewEmbeddingWithCache(embedder ports.Embedder, cacheSize int) *Embedding {
	return &Embedding{embedder: embedder, cache: relevance.NewVectorCache(cacheSize)}
}

func (e *Embedding) Name() string  { return "embedding" }
func (e *Embedding) Enabled() bool { return e.embedder != nil }

// Similarity clamps the cosine score to [0,1].
func (e *Embedding) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := e.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := e.vector(ctx, b)
	if err != nil {
		return 0, err
	}
	return max(0, min(1, relevance.Cosine(va, vb))), nil
}

func (e *Embedding) vector(ctx context.Context, text string) ([]float64, error) {
	key := strings.ToLower(strings.TrimSpace(text))

	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}

	v, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed headline: %w", err)
	}

	e.cache.Put(key, v)
	return v, nil
}
