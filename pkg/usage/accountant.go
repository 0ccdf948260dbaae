// Package usage accumulates per-step token counts and derives cost from the
// pricing catalog.
package usage

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/stromboli/pkg/pricing"
)

// StepUsage is what one step reports, either provider-supplied or estimated.
type StepUsage struct {
	PromptTokens     int
	CompletionTokens int
	ReasoningTokens  int
	// Credits is provider-reported monetary usage, accumulated verbatim
	// alongside the locally computed USD figure.
	Credits   float64
	Estimated bool
}

// Snapshot is the running total across steps. Estimated is true as soon as
// any contributing step carried synthesized counts.
type Snapshot struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	ReasoningTokens  int     `json:"reasoning_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	Credits          float64 `json:"credits"`
	Estimated        bool    `json:"estimated"`
}

// Accountant folds step usage into a running total. Each orchestration run
// owns one accountant; only the pricing cache is shared.
type Accountant struct {
	cache  *pricing.Cache
	model  string
	totals Snapshot
}

func NewAccountant(cache *pricing.Cache, model string) *Accountant {
	return &Accountant{cache: cache, model: model}
}

// Record prices one step's usage and folds it into the totals. A pricing
// miss leaves the cost contribution at zero but still counts tokens.
func (a *Accountant) Record(ctx context.Context, step StepUsage) Snapshot {
	a.totals.PromptTokens += step.PromptTokens
	a.totals.CompletionTokens += step.CompletionTokens
	a.totals.ReasoningTokens += step.ReasoningTokens
	a.totals.Credits += step.Credits
	if step.Estimated {
		a.totals.Estimated = true
	}

	if entry := a.GetPricing(ctx); entry != nil {
		a.totals.CostUSD += stepCost(step, entry)
	} else {
		log.Debug().Str("model", a.model).Msg("no pricing entry, step cost not computed")
	}

	return a.totals
}

// GetPricing looks up the accountant's model in the shared cache. Returns
// nil on a catalog miss.
func (a *Accountant) GetPricing(ctx context.Context) *pricing.Entry {
	if a.cache == nil {
		return nil
	}
	return a.cache.Lookup(ctx, a.model)
}

// Totals returns the running snapshot.
func (a *Accountant) Totals() Snapshot {
	return a.totals
}

func stepCost(step StepUsage, entry *pricing.Entry) float64 {
	reasoningRate := entry.CompletionRatePer1k
	if entry.ReasoningRatePer1k != nil {
		reasoningRate = *entry.ReasoningRatePer1k
	}
	return float64(step.PromptTokens)/1000*entry.PromptRatePer1k +
		float64(step.CompletionTokens)/1000*entry.CompletionRatePer1k +
		float64(step.ReasoningTokens)/1000*reasoningRate
}
