package usage

// EstimateTokens approximates a token count from text length, roughly four
// characters per token. Used when a provider withholds real usage.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateStep synthesizes a step's usage from the serialized prompt and the
// produced completion text. The result is flagged as estimated.
func EstimateStep(promptText, completionText string) StepUsage {
	return StepUsage{
		PromptTokens:     EstimateTokens(promptText),
		CompletionTokens: EstimateTokens(completionText),
		Estimated:        true,
	}
}
