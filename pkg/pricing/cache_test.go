package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls   int
	catalog map[string]Entry
	err     error
}

func (f *countingFetcher) FetchCatalog(_ context.Context) (map[string]Entry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]Entry, len(f.catalog))
	for k, v := range f.catalog {
		out[k] = v
	}
	return out, nil
}

func TestCacheFetchesOnceWithinTTL(t *testing.T) {
	fetcher := &countingFetcher{catalog: map[string]Entry{
		"gpt-4": {PromptRatePer1k: 0.03, CompletionRatePer1k: 0.06},
	}}
	cache := NewCache(fetcher)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		entry := cache.Lookup(ctx, "gpt-4")
		require.NotNil(t, entry)
		assert.Equal(t, 0.03, entry.PromptRatePer1k)
	}
	assert.Equal(t, 1, fetcher.calls)
}

func TestCacheRefreshesAfterTTL(t *testing.T) {
	fetcher := &countingFetcher{catalog: map[string]Entry{
		"gpt-4": {PromptRatePer1k: 0.03, CompletionRatePer1k: 0.06},
	}}

	now := time.Now()
	cache := NewCache(fetcher,
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	require.NotNil(t, cache.Lookup(ctx, "gpt-4"))
	assert.Equal(t, 1, fetcher.calls)

	now = now.Add(30 * time.Minute)
	require.NotNil(t, cache.Lookup(ctx, "gpt-4"))
	assert.Equal(t, 1, fetcher.calls)

	now = now.Add(31 * time.Minute)
	require.NotNil(t, cache.Lookup(ctx, "gpt-4"))
	assert.Equal(t, 2, fetcher.calls)
}

func TestCacheMissReturnsNil(t *testing.T) {
	fetcher := &countingFetcher{catalog: map[string]Entry{
		"gpt-4": {PromptRatePer1k: 0.03},
	}}
	cache := NewCache(fetcher)

	assert.Nil(t, cache.Lookup(context.Background(), "unknown-model"))
	assert.Equal(t, 1, fetcher.calls)
}

func TestCacheFetchErrorReturnsNil(t *testing.T) {
	fetcher := &countingFetcher{err: assert.AnError}
	cache := NewCache(fetcher)

	assert.Nil(t, cache.Lookup(context.Background(), "gpt-4"))
}

func TestCacheStampsCachedAt(t *testing.T) {
	now := time.Now()
	fetcher := &countingFetcher{catalog: map[string]Entry{
		"gpt-4": {PromptRatePer1k: 0.03},
	}}
	cache := NewCache(fetcher, WithClock(func() time.Time { return now }))

	entry := cache.Lookup(context.Background(), "gpt-4")
	require.NotNil(t, entry)
	assert.Equal(t, now, entry.CachedAt)
}

func TestParseCatalogConvertsPerTokenRates(t *testing.T) {
	catalog, err := parseCatalog([]byte(`{
		"gpt-4": {"input_cost_per_token": 0.00003, "output_cost_per_token": 0.00006},
		"sample_spec": {"max_tokens": "set to max output tokens"}
	}`))
	require.NoError(t, err)
	require.Contains(t, catalog, "gpt-4")
	assert.NotContains(t, catalog, "sample_spec")
	assert.InDelta(t, 0.03, catalog["gpt-4"].PromptRatePer1k, 1e-9)
	assert.InDelta(t, 0.06, catalog["gpt-4"].CompletionRatePer1k, 1e-9)
}
