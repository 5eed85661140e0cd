package rag

import "unicode/utf8"

// EstimateTokens approximates the token count of text as ceil(chars / 4).
// It is a cost-accounting heuristic, not a tokenizer; actual usage figures
// from the generation backend take precedence when available.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
