package pricing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultCatalogURL serves the LiteLLM community pricing table.
const DefaultCatalogURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// catalogModel is the per-model shape of the LiteLLM pricing JSON. Costs are
// USD per single token.
type catalogModel struct {
	InputCostPerToken           float64  `json:"input_cost_per_token"`
	OutputCostPerToken          float64  `json:"output_cost_per_token"`
	OutputCostPerReasoningToken *float64 `json:"output_cost_per_reasoning_token"`
}

func (m catalogModel) toEntry() Entry {
	e := Entry{
		PromptRatePer1k:     m.InputCostPerToken * 1000,
		CompletionRatePer1k: m.OutputCostPerToken * 1000,
	}
	if m.OutputCostPerReasoningToken != nil {
		rate := *m.OutputCostPerReasoningToken * 1000
		e.ReasoningRatePer1k = &rate
	}
	return e
}

// HTTPFetcher downloads a LiteLLM-format catalog.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func NewHTTPFetcher(url string) *HTTPFetcher {
	if url == "" {
		url = DefaultCatalogURL
	}
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *HTTPFetcher) FetchCatalog(ctx context.Context) (map[string]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build pricing request")
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch pricing catalog")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("pricing catalog fetch returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pricing catalog")
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (map[string]Entry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse pricing catalog")
	}

	catalog := make(map[string]Entry, len(raw))
	for model, value := range raw {
		var m catalogModel
		if err := json.Unmarshal(value, &m); err != nil {
			// Catalog carries non-model entries (sample specs etc.)
			continue
		}
		if m.InputCostPerToken == 0 && m.OutputCostPerToken == 0 {
			continue
		}
		catalog[model] = m.toEntry()
	}
	return catalog, nil
}

// fileCatalog is the YAML shape for locally pinned rates, USD per 1k tokens.
type fileCatalog struct {
	Models map[string]struct {
		PromptPer1k     float64  `yaml:"prompt_per_1k"`
		CompletionPer1k float64  `yaml:"completion_per_1k"`
		ReasoningPer1k  *float64 `yaml:"reasoning_per_1k"`
	} `yaml:"models"`
}

// FileFetcher reads a local YAML catalog, for air-gapped setups and tests.
type FileFetcher struct {
	Path string
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{Path: path}
}

func (f *FileFetcher) FetchCatalog(_ context.Context) (map[string]Entry, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read pricing file %s", f.Path)
	}

	var file fileCatalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse pricing file %s", f.Path)
	}

	catalog := make(map[string]Entry, len(file.Models))
	for model, rates := range file.Models {
		catalog[model] = Entry{
			PromptRatePer1k:     rates.PromptPer1k,
			CompletionRatePer1k: rates.CompletionPer1k,
			ReasoningRatePer1k:  rates.ReasoningPer1k,
		}
	}
	return catalog, nil
}
