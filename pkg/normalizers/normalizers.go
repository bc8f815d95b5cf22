// Package normalizers provides value normalization used before signal
// extraction and phonetic encoding.
package normalizers

import (
	"strings"
	"unicode"
)

// NormalizeName lowercases, trims, strips punctuation, and collapses internal
// whitespace so that "O'Brien,  Patrick " and "obrien patrick" encode alike.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeAddress canonicalizes identifier-like values (crypto addresses,
// device ids) by trimming surrounding whitespace.
func NormalizeAddress(s string) string {
	return strings.TrimSpace(s)
}
