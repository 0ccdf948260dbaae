package usage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/stromboli/pkg/pricing"
)

func newTestCache(catalog map[string]pricing.Entry) *pricing.Cache {
	return pricing.NewCache(pricing.CatalogFetcherFunc(
		func(context.Context) (map[string]pricing.Entry, error) {
			return catalog, nil
		},
	))
}

func TestEstimateTokensFourCharsPerToken(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(string(make([]byte, 100))))
}

func TestRecordAccumulatesAcrossSteps(t *testing.T) {
	a := NewAccountant(nil, "gpt-4")

	a.Record(context.Background(), StepUsage{PromptTokens: 10, CompletionTokens: 5})
	totals := a.Record(context.Background(), StepUsage{PromptTokens: 20, CompletionTokens: 15, ReasoningTokens: 7})

	assert.Equal(t, 30, totals.PromptTokens)
	assert.Equal(t, 20, totals.CompletionTokens)
	assert.Equal(t, 7, totals.ReasoningTokens)
	assert.False(t, totals.Estimated)
}

func TestRecordComputesCost(t *testing.T) {
	cache := newTestCache(map[string]pricing.Entry{
		"gpt-4": {PromptRatePer1k: 0.03, CompletionRatePer1k: 0.06},
	})
	a := NewAccountant(cache, "gpt-4")

	totals := a.Record(context.Background(), StepUsage{PromptTokens: 1000, CompletionTokens: 500})
	assert.InDelta(t, 0.03+0.03, totals.CostUSD, 1e-9)
}

func TestRecordReasoningRateDefaultsToCompletion(t *testing.T) {
	cache := newTestCache(map[string]pricing.Entry{
		"gpt-4": {PromptRatePer1k: 0.03, CompletionRatePer1k: 0.06},
	})
	a := NewAccountant(cache, "gpt-4")

	totals := a.Record(context.Background(), StepUsage{ReasoningTokens: 1000})
	assert.InDelta(t, 0.06, totals.CostUSD, 1e-9)
}

func TestRecordDistinctReasoningRate(t *testing.T) {
	reasoningRate := 0.12
	cache := newTestCache(map[string]pricing.Entry{
		"gpt-4": {CompletionRatePer1k: 0.06, ReasoningRatePer1k: &reasoningRate},
	})
	a := NewAccountant(cache, "gpt-4")

	totals := a.Record(context.Background(), StepUsage{ReasoningTokens: 1000})
	assert.InDelta(t, 0.12, totals.CostUSD, 1e-9)
}

func TestRecordPricingMissCountsTokensOnly(t *testing.T) {
	cache := newTestCache(map[string]pricing.Entry{})
	a := NewAccountant(cache, "unknown-model")

	totals := a.Record(context.Background(), StepUsage{PromptTokens: 1000, CompletionTokens: 1000})
	assert.Equal(t, 1000, totals.PromptTokens)
	assert.Equal(t, 1000, totals.CompletionTokens)
	assert.Zero(t, totals.CostUSD)
}

func TestRecordCreditsAccumulateVerbatim(t *testing.T) {
	a := NewAccountant(nil, "gpt-4")

	a.Record(context.Background(), StepUsage{Credits: 1.5})
	totals := a.Record(context.Background(), StepUsage{Credits: 0.25})
	assert.InDelta(t, 1.75, totals.Credits, 1e-9)
}

func TestEstimatedFlagSticks(t *testing.T) {
	a := NewAccountant(nil, "gpt-4")

	a.Record(context.Background(), StepUsage{PromptTokens: 10})
	a.Record(context.Background(), EstimateStep("some prompt", "some completion"))
	totals := a.Record(context.Background(), StepUsage{PromptTokens: 10})

	assert.True(t, totals.Estimated)
	require.Greater(t, totals.CompletionTokens, 0)
}
