package domain

import (
	"strings"
	"unicode"
)

// NormalizeTitle makes a page title safe to use as part of an output key:
//   - every run of whitespace or ASCII control characters becomes one space
//   - leading/trailing spaces are trimmed
//
// Case, diacritics and punctuation are preserved.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingSpace := false
	for _, r := range title {
		if r < 0x20 || unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
