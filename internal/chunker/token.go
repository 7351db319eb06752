package chunker

import "strings"

// EstimateTokens gives a rough token count from the word count. Exact
// tokenization is not needed to stay inside a prompt budget.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
