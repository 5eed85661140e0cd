package rag

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single char", "A", 1},
		{"four chars", "abcd", 1},
		{"five chars", "abcde", 2},
		{"three hundred chars", strings.Repeat("A", 300), 75},
		{"multibyte counts runes", "日本語テスト", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs."

	prev := 0
	for i := 0; i <= len(text); i++ {
		got := EstimateTokens(text[:i])
		if got < prev {
			t.Fatalf("estimate decreased at length %d: %d < %d", i, got, prev)
		}
		if got < 0 {
			t.Fatalf("negative estimate at length %d: %d", i, got)
		}
		prev = got
	}
}
