package app

import (
	"context"
	"fmt"
	"strings"

	"NewsRelay/internal/infrastructure/storage"
	"NewsRelay/internal/ports"
)

// Store is the persistence surface the application needs.
type Store interface {
	ports.ItemStore
	ports.ItemAdmin
	Close() error
}

// OpenStore picks the backend from the DSN scheme: memory:// keeps
// everything in process, anything else goes to the SQL store.
func OpenStore(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "memory://") {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.OpenSQL(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}
