package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/infrastructure/storage"
)

func rawItem(headline, url, source string) domain.RawItem {
	return domain.RawItem{Headline: headline, URL: url, SourceName: source}
}

func seed(t *testing.T, store *storage.MemoryStore, raws ...domain.RawItem) {
	t.Helper()
	for _, r := range raws {
		item := domain.NewItem(r, time.Now())
		item.Stage = domain.StageDedupChecked
		if _, err := store.Upsert(context.Background(), item, domain.WriteOnce()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func items(raws ...domain.RawItem) []domain.Item {
	out := make([]domain.Item, len(raws))
	for i, r := range raws {
		out[i] = domain.NewItem(r, time.Now())
	}
	return out
}

func TestPartitionStoryIDWinsOverOtherStrategies(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(t, store, rawItem("Rates unchanged", "https://a.example/1", "Reuters"))

	dedup := NewDeduplicator(DedupDeps{Store: store})
	result, err := dedup.Partition(context.Background(), items(
		rawItem("Rates unchanged", "https://b.example/totally-different", "Reuters"),
	))
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0].Strategy != DupStoryID {
		t.Fatalf("expected story_id duplicate, got %+v", result.Duplicates)
	}
	if got := result.Duplicates[0].Reason(); got != "duplicate:story_id" {
		t.Fatalf("unexpected reason %s", got)
	}
}

func TestPartitionStoredURLAndHeadline(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(t, store,
		rawItem("Floods in the north", "https://a.example/floods", "AP"),
		rawItem("Markets rally", "https://a.example/markets", "AP"),
	)

	dedup := NewDeduplicator(DedupDeps{Store: store})
	result, err := dedup.Partition(context.Background(), items(
		rawItem("Northern floods worsen", "https://A.example/floods/?utm_source=rss", "BBC"),
		rawItem("Markets rally!", "https://c.example/other", "BBC"),
		rawItem("Something new", "https://c.example/new", "BBC"),
	))
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(result.Unique) != 1 || result.Unique[0].Headline != "Something new" {
		t.Fatalf("unexpected unique %+v", result.Unique)
	}
	if result.Duplicates[0].Strategy != DupURL {
		t.Fatalf("expected url duplicate, got %s", result.Duplicates[0].Strategy)
	}
	if result.Duplicates[1].Strategy != DupHeadline {
		t.Fatalf("expected headline duplicate, got %s", result.Duplicates[1].Strategy)
	}
}

func TestPartitionInBatch(t *testing.T) {
	t.Parallel()

	dedup := NewDeduplicator(DedupDeps{Store: storage.NewMemoryStore()})
	result, err := dedup.Partition(context.Background(), items(
		rawItem("Story one", "https://x.example/story?id=1", "AP"),
		rawItem("Story one, updated", "https://x.example/story?id=1&fbclid=zz", "Reuters"),
	))
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(result.Unique) != 1 || len(result.Duplicates) != 1 {
		t.Fatalf("expected 1 unique and 1 duplicate, got %d/%d", len(result.Unique), len(result.Duplicates))
	}
	if result.Duplicates[0].Strategy != DupBatch {
		t.Fatalf("expected batch duplicate, got %s", result.Duplicates[0].Strategy)
	}
}

func TestPartitionIgnoresRedirectURLs(t *testing.T) {
	t.Parallel()

	dedup := NewDeduplicator(DedupDeps{Store: storage.NewMemoryStore()})
	result, err := dedup.Partition(context.Background(), items(
		rawItem("First", "https://news.google.com/rss/articles/CBMiAAA", "AP"),
		rawItem("Second", "https://news.google.com/rss/articles/CBMiAAA", "AP"),
	))
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(result.Unique) != 2 {
		t.Fatalf("redirect urls must not be compared, got %d unique", len(result.Unique))
	}
}

func TestPartitionSemanticThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	batch := items(
		rawItem("Quake strikes city", "https://a.example/1", "AP"),
		rawItem("City hit by earthquake", "https://b.example/2", "BBC"),
	)

	atThreshold := NewDeduplicator(DedupDeps{
		Store:       storage.NewMemoryStore(),
		Similarity:  constSimilarity{score: 0.9},
		Threshold:   0.9,
		RecentLimit: 10,
	})
	result, err := atThreshold.Partition(context.Background(), batch)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(result.Unique) != 2 {
		t.Fatalf("score equal to threshold must not be a duplicate, got %d unique", len(result.Unique))
	}

	above := NewDeduplicator(DedupDeps{
		Store:       storage.NewMemoryStore(),
		Similarity:  constSimilarity{score: 0.91},
		Threshold:   0.9,
		RecentLimit: 10,
	})
	result, err = above.Partition(context.Background(), batch)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0].Strategy != DupSemantic {
		t.Fatalf("expected semantic duplicate, got %+v", result.Duplicates)
	}
}

func TestPartitionStoreUnavailable(t *testing.T) {
	t.Parallel()

	store := newFlakyStore()
	store.failLookups = true

	dedup := NewDeduplicator(DedupDeps{Store: store})
	_, err := dedup.Partition(context.Background(), items(rawItem("Any", "https://a.example", "AP")))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
