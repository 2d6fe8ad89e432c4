package storage

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/normalize"
	"NewsRelay/internal/ports"
)

// MemoryStore keeps items in process memory; state is lost on exit.
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[string]domain.Item
	urls      map[string]int
	headlines map[string]int
	rateLimit *domain.RateLimitRecord
	now       func() time.Time
}

var (
	_ ports.ItemStore = (*MemoryStore)(nil)
	_ ports.ItemAdmin = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     map[string]domain.Item{},
		urls:      map[string]int{},
		headlines: map[string]int{},
		now:       time.Now,
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Get(_ context.Context, id string) (domain.Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok, nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok, nil
}

func (m *MemoryStore) Upsert(_ context.Context, item domain.Item, preserve domain.FieldSet) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	item.UpdatedAt = now
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}

	if existing, ok := m.items[item.ID]; ok {
		item = domain.Merge(existing, item, preserve)
		m.unindex(existing)
	}
	m.items[item.ID] = item
	m.index(item)
	return item, nil
}

// List yields a sorted snapshot taken at call time.
func (m *MemoryStore) List(_ context.Context, filter ports.ListFilter) iter.Seq2[domain.Item, error] {
	m.mu.RLock()
	snapshot := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		if matches(item, filter) {
			snapshot = append(snapshot, item)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(snapshot, func(a, b domain.Item) int { return strings.Compare(a.ID, b.ID) })
	if filter.Limit > 0 && len(snapshot) > filter.Limit {
		snapshot = snapshot[:filter.Limit]
	}

	return func(yield func(domain.Item, error) bool) {
		for _, item := range snapshot {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (m *MemoryStore) HasURLHash(_ context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.urls[hash] > 0, nil
}

func (m *MemoryStore) HasHeadlineHash(_ context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headlines[hash] > 0, nil
}

func (m *MemoryStore) RecentHeadlines(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	all := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		all = append(all, item)
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b domain.Item) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	headlines := make([]string, len(all))
	for i, item := range all {
		headlines[i] = item.Headline
	}
	return headlines, nil
}

func (m *MemoryStore) RateLimitRecord(_ context.Context) (domain.RateLimitRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rateLimit == nil {
		return domain.RateLimitRecord{}, false, nil
	}
	return *m.rateLimit, true, nil
}

func (m *MemoryStore) SetRateLimitRecord(_ context.Context, rec domain.RateLimitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimit = &rec
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, id string) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("reset %s: %w", id, domain.ErrNotFound)
	}
	m.unindex(item)
	item = item.ResetDerived(m.now().UTC())
	m.items[id] = item
	m.index(item)
	return item, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return fmt.Errorf("delete %s: %w", id, domain.ErrNotFound)
	}
	m.unindex(item)
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) index(item domain.Item) {
	for _, h := range urlHashes(item) {
		m.urls[h]++
	}
	if h := item.HeadlineKey(); h != "" {
		m.headlines[h]++
	}
}

func (m *MemoryStore) unindex(item domain.Item) {
	for _, h := range urlHashes(item) {
		if m.urls[h]--; m.urls[h] <= 0 {
			delete(m.urls, h)
		}
	}
	if h := item.HeadlineKey(); h != "" {
		if m.headlines[h]--; m.headlines[h] <= 0 {
			delete(m.headlines, h)
		}
	}
}

func urlHashes(item domain.Item) []string {
	var out []string
	for _, raw := range []string{item.RawSourceURL, item.ResolvedURL} {
		if h := normalize.URLHash(raw); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func matches(item domain.Item, filter ports.ListFilter) bool {
	if len(filter.Stages) > 0 && !slices.Contains(filter.Stages, item.Stage) {
		return false
	}
	if filter.PublishStatus != "" && item.PublishStatus != filter.PublishStatus {
		return false
	}
	if filter.IDPrefix != "" && !strings.HasPrefix(item.ID, filter.IDPrefix) {
		return false
	}
	return true
}
