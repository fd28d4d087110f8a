package display

import "strings"

// isbnPrefix marks a description that starts with an ISBN-13 glued to the
// text, as produced by the tagged-description export.
const isbnPrefix = "978"

// isbnLen is the number of characters in an ISBN-13.
const isbnLen = 13

// Clean normalizes a raw description for display:
//
//  1. empty input yields [DefaultDescription];
//  2. a leading ISBN-13 ("978…" and longer than 13 characters) is removed,
//     together with the space that follows it;
//  3. surrounding whitespace and one layer each of double and single quotes
//     are stripped;
//  4. internal whitespace runs collapse to a single space.
func Clean(raw string) string {
	if raw == "" {
		return DefaultDescription
	}

	s := raw
	if strings.HasPrefix(s, isbnPrefix) {
		runes := []rune(s)
		if len(runes) > isbnLen {
			cut := isbnLen
			if runes[isbnLen] == ' ' {
				cut++
			}
			s = string(runes[cut:])
		}
	}

	s = strings.TrimSpace(s)
	s = trimQuote(s, '"')
	s = trimQuote(s, '\'')
	s = strings.Join(strings.Fields(s), " ")

	if s == "" {
		return DefaultDescription
	}
	return s
}

// trimQuote removes a single leading and a single trailing q, each when
// present.
func trimQuote(s string, q byte) string {
	if len(s) > 0 && s[0] == q {
		s = s[1:]
	}
	if len(s) > 0 && s[len(s)-1] == q {
		s = s[:len(s)-1]
	}
	return s
}
