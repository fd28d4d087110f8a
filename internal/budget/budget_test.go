package budget

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_Fits(t *testing.T) {
	t.Parallel()
	if !Fits(strings.Repeat("x", 40), 10) {
		t.Error("40 chars should fit in 10 tokens")
	}
	if Fits(strings.Repeat("x", 44), 10) {
		t.Error("44 chars should not fit in 10 tokens")
	}
	if !Fits(strings.Repeat("x", 10000), 0) {
		t.Error("zero budget means unlimited")
	}
}

func Test_Truncate_Unchanged(t *testing.T) {
	t.Parallel()
	s := "a short description"
	if got := Truncate(s, 100); got != s {
		t.Errorf("want unchanged, got %q", got)
	}
	if got := Truncate(s, 0); got != s {
		t.Errorf("zero budget: want unchanged, got %q", got)
	}
}

func Test_Truncate_CutsAtWordBoundary(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("word ", 20) // 100 chars
	got := Truncate(s, 5)            // 20 chars

	if !Fits(got, 5) {
		t.Errorf("result %q exceeds budget", got)
	}
	if got != "word word word word" {
		t.Errorf("want cut at the last space, got %q", got)
	}
}

func Test_Truncate_NoWhitespace(t *testing.T) {
	t.Parallel()
	got := Truncate(strings.Repeat("x", 100), 5)
	if got != strings.Repeat("x", 20) {
		t.Errorf("want hard cut at 20 chars, got %d chars", len(got))
	}
}

func Test_Truncate_KeepsUTF8Valid(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("é", 50) // 2 bytes each
	got := Truncate(s, 3)        // 12 bytes
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if len(got) > 12 {
		t.Errorf("want at most 12 bytes, got %d", len(got))
	}
}
