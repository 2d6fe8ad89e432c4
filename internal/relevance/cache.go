package relevance

import "sync"

// DefaultCacheSize bounds embedding caches held for the life of the process.
const DefaultCacheSize = 1024

// VectorCache memoizes embeddings up to a fixed number of entries. When
// full, it starts over empty; an entry evicted this way is simply embedded
// again on its next use.
type VectorCache struct {
	mu      sync.Mutex
	limit   int
	vectors map[string][]float64
}

// NewVectorCache builds a cache; a non-positive limit uses DefaultCacheSize.
func NewVectorCache(limit int) *VectorCache {
	if limit <= 0 {
		limit = DefaultCacheSize
	}
	return &VectorCache{limit: limit, vectors: make(map[string][]float64)}
}

func (c *VectorCache) Get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vectors[key]
	return v, ok
}

func (c *VectorCache) Put(key string, v []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vectors[key]; !ok && len(c.vectors) >= c.limit {
		clear(c.vectors)
	}
	c.vectors[key] = v
}

// Len reports the number of cached vectors.
func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vectors)
}
