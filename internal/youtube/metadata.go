package youtube

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Data API limits for snippet fields.
const (
	MaxTitleRunes       = 100
	MaxDescriptionBytes = 5000

	// FallbackTitle replaces a title that sanitizes to nothing.
	FallbackTitle = "Short automático"
)

// Sanitized returns a copy the Data API will accept: control characters
// and angle brackets removed, whitespace trimmed, lengths capped.
func (m Metadata) Sanitized() Metadata {
	title := truncateRunes(clean(m.Title, false), MaxTitleRunes)
	if title == "" {
		title = FallbackTitle
	}
	return Metadata{
		Title:       title,
		Description: truncateBytes(clean(m.Description, true), MaxDescriptionBytes),
	}
}

func clean(s string, keepNewlines bool) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '<' || r == '>':
			continue
		case r == '\n' && keepNewlines:
			b.WriteRune(r)
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// truncateBytes cuts at a rune boundary.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
