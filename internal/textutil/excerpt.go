package textutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate limits value to max runes.
func Truncate(value string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	return string([]rune(value)[:max])
}

// Excerpt flattens whitespace runs (including newlines) into single spaces
// and truncates the result to max runes.
func Excerpt(value string, max int) string {
	flat := strings.Join(strings.Fields(value), " ")
	return strings.TrimSpace(Truncate(flat, max))
}

// TruncateBytes limits value to max bytes without splitting a rune.
func TruncateBytes(value string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
