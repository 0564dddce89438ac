package chunker

// EstimateTokens gives a rough token count from character length.
// Exact tokenization is not required for chunk budgeting; Turkish
// legal text averages about 1.5 characters per token.
func EstimateTokens(text string, charsPerToken float64) int {
	if text == "" {
		return 0
	}
	if charsPerToken <= 0 {
		charsPerToken = 1.5
	}
	tokens := int(float64(len(text)) / charsPerToken)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
