package utils

import (
	"strings"
	"unicode"
)

const maxSlugLength = 80

// Slugify lowercases s and joins its letter and digit runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	slug := []rune(b.String())
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return strings.TrimRight(string(slug), "-")
}
