package events

// Usage represents token usage information common across LLM providers.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
	// ReasoningTokens is reported by thinking-capable models; zero otherwise.
	ReasoningTokens int `json:"reasoning_tokens,omitempty" yaml:"reasoning_tokens,omitempty"`
	// Credits is provider-reported monetary usage, accumulated verbatim and
	// independent from any locally computed cost.
	Credits float64 `json:"credits,omitempty" yaml:"credits,omitempty"`
}

// LLMInferenceData consolidates common inference metadata for UI/storage/aggregation.
type LLMInferenceData struct {
	Model      string  `json:"model,omitempty" yaml:"model,omitempty"`
	StopReason *string `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Usage      *Usage  `json:"usage,omitempty" yaml:"usage,omitempty"`
	DurationMs *int64  `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
}
