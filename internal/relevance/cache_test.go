package relevance

import "testing"

func TestVectorCacheStaysBounded(t *testing.T) {
	t.Parallel()

	c := NewVectorCache(3)
	for _, key := range []string{"a", "b", "c"} {
		c.Put(key, []float64{1})
	}
	c.Put("b", []float64{2})
	if c.Len() != 3 {
		t.Fatalf("overwriting a key must not evict, got %d entries", c.Len())
	}

	c.Put("d", []float64{4})
	if c.Len() != 1 {
		t.Fatalf("expected the cache to start over when full, got %d entries", c.Len())
	}
	if v, ok := c.Get("d"); !ok || v[0] != 4 {
		t.Fatalf("newest entry missing after eviction: %v %v", v, ok)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("evicted entry still present")
	}
}

func TestNewVectorCacheDefaultsLimit(t *testing.T) {
	t.Parallel()

	if c := NewVectorCache(0); c.limit != DefaultCacheSize {
		t.Fatalf("expected default limit, got %d", c.limit)
	}
}
