// Package extraction holds the competing article-text strategies and the
// registry that orders them.
package extraction

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched and parsed article page.
type Page struct {
	URL string
	Doc *goquery.Document
}

// Strategy pulls article text out of a page. An empty result means the
// strategy found nothing usable and the next one should be tried.
type Strategy interface {
	Name() string
	Extract(page Page) string
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// DefaultRegistry registers every built-in strategy in preference order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewReadable())
	r.Register(Selectors{})
	r.Register(Paragraphs{})
	r.Register(MetaDescription{})
	return r
}

// Register adds or replaces a strategy. New names are appended to the order.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	if _, ok := r.strategies[strategy.Name()]; !ok {
		r.order = append(r.order, strategy.Name())
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("extraction strategy %s is not registered", name)
}

// Chain returns the strategies for names in that order, or every registered
// strategy in registration order when names is empty.
func (r *Registry) Chain(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		names = r.order
	}
	chain := make([]Strategy, 0, len(names))
	for _, name := range names {
		strategy, err := r.Resolve(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		chain = append(chain, strategy)
	}
	return chain, nil
}
