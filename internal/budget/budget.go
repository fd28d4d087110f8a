// Package budget estimates token counts and caps embedding inputs. Embedding
// backends use different tokenizers, so the estimate is a character
// heuristic: 1 token ≈ 4 characters of English prose.
package budget

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxInputTokens is the default per-text input budget sent to an
	// embedding model. It stays under the 8191-token input limit of the
	// OpenAI embedding models.
	DefaultMaxInputTokens = 8000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Fits reports whether s is estimated to fit within maxTokens.
// A non-positive maxTokens means unlimited.
func Fits(s string, maxTokens int) bool {
	return maxTokens <= 0 || Estimate(s) <= maxTokens
}

// Truncate shortens s so its estimate fits within maxTokens. The cut falls on
// the last whitespace before the limit when there is one, and never splits a
// UTF-8 sequence. Text that already fits is returned unchanged.
func Truncate(s string, maxTokens int) string {
	if Fits(s, maxTokens) {
		return s
	}

	limit := maxTokens * charsPerToken
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	cut := s[:limit]

	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace)
}
