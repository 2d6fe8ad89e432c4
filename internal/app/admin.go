package app

import (
	"context"
	"errors"
	"fmt"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// ErrPublished guards destructive commands against already posted items.
var ErrPublished = errors.New("item already published; use -force")

// Admin implements the inspection and maintenance commands.
type Admin struct {
	store Store
}

// NewAdmin wraps a store for operator commands.
func NewAdmin(store Store) *Admin {
	return &Admin{store: store}
}

// List collects items matching filter.
func (a *Admin) List(ctx context.Context, filter ports.ListFilter) ([]domain.Item, error) {
	var items []domain.Item
	for item, err := range a.store.List(ctx, filter) {
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Find looks an item up by full id or by a unique id prefix.
func (a *Admin) Find(ctx context.Context, idOrPrefix string) (domain.Item, error) {
	if idOrPrefix == "" {
		return domain.Item{}, fmt.Errorf("empty id: %w", domain.ErrNotFound)
	}

	item, found, err := a.store.Get(ctx, idOrPrefix)
	if err != nil {
		return domain.Item{}, err
	}
	if found {
		return item, nil
	}

	matches, err := a.List(ctx, ports.ListFilter{IDPrefix: idOrPrefix, Limit: 2})
	if err != nil {
		return domain.Item{}, err
	}
	switch len(matches) {
	case 0:
		return domain.Item{}, fmt.Errorf("find %s: %w", idOrPrefix, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return domain.Item{}, fmt.Errorf("find %s: %w", idOrPrefix, domain.ErrAmbiguousID)
	}
}

// Reset returns an item to dedup_checked so the next run reprocesses it.
func (a *Admin) Reset(ctx context.Context, idOrPrefix string, force bool) (domain.Item, error) {
	item, err := a.Find(ctx, idOrPrefix)
	if err != nil {
		return domain.Item{}, err
	}
	if item.PublishStatus == domain.PublishPublished && !force {
		return domain.Item{}, fmt.Errorf("reset %s: %w", item.ID, ErrPublished)
	}
	return a.store.Reset(ctx, item.ID)
}

// Delete removes an item; published items need force.
func (a *Admin) Delete(ctx context.Context, idOrPrefix string, force bool) (domain.Item, error) {
	item, err := a.Find(ctx, idOrPrefix)
	if err != nil {
		return domain.Item{}, err
	}
	if item.PublishStatus == domain.PublishPublished && !force {
		return domain.Item{}, fmt.Errorf("delete %s: %w", item.ID, ErrPublished)
	}
	if err := a.store.Delete(ctx, item.ID); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}
