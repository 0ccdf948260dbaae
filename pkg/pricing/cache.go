// Package pricing maintains a TTL-bounded cache of per-model token rates.
// The cache is constructed once per process and shared by concurrent runs;
// entries are immutable snapshots, so concurrent refreshes may race and the
// last write wins.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultTTL = time.Hour

// Entry holds the rates for one model, in USD per thousand tokens.
type Entry struct {
	PromptRatePer1k     float64
	CompletionRatePer1k float64
	// ReasoningRatePer1k is nil when the catalog has no distinct reasoning
	// rate; callers fall back to the completion rate.
	ReasoningRatePer1k *float64
	CachedAt           time.Time
}

// CatalogFetcher returns the whole pricing catalog keyed by model id.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context) (map[string]Entry, error)
}

// CatalogFetcherFunc adapts a function to CatalogFetcher.
type CatalogFetcherFunc func(ctx context.Context) (map[string]Entry, error)

func (f CatalogFetcherFunc) FetchCatalog(ctx context.Context) (map[string]Entry, error) {
	return f(ctx)
}

// Cache lazily refreshes the whole catalog when empty or older than the TTL.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	lastFetch time.Time

	fetcher CatalogFetcher
	ttl     time.Duration
	now     func() time.Time
}

type CacheOption func(*Cache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(fetcher CatalogFetcher, options ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Lookup returns the entry for model, refreshing the catalog first if it is
// empty or stale. A miss after a successful refresh returns nil; tokens are
// still counted upstream, only the cost goes uncomputed. A failed refresh
// also returns nil rather than an error.
func (c *Cache) Lookup(ctx context.Context, model string) *Entry {
	if err := c.ensureFresh(ctx); err != nil {
		log.Warn().Err(err).Str("model", model).Msg("pricing catalog refresh failed")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[model]
	if !ok {
		return nil
	}
	return &entry
}

func (c *Cache) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	fresh := len(c.entries) > 0 && c.now().Sub(c.lastFetch) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	catalog, err := c.fetcher.FetchCatalog(ctx)
	if err != nil {
		return err
	}

	fetchedAt := c.now()
	for model, entry := range catalog {
		entry.CachedAt = fetchedAt
		catalog[model] = entry
	}

	c.mu.Lock()
	// Concurrent refreshes race here; entries are idempotent snapshots so
	// whichever write lands last is fine.
	c.entries = catalog
	c.lastFetch = fetchedAt
	c.mu.Unlock()

	log.Debug().Int("models", len(catalog)).Msg("pricing catalog refreshed")
	return nil
}
