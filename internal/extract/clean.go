package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const (
	phoneMask   = "[phone hidden]"
	contactMask = "[contact hidden]"
)

var strictPolicy = bluemonday.StrictPolicy()

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+7\s*\(?\d{3}\)?\s*\d{3}[\s\-]?\d{2}[\s\-]?\d{2}`),
	regexp.MustCompile(`\b8\s*\(?\d{3}\)?\s*\d{3}[\s\-]?\d{2}[\s\-]?\d{2}\b`),
	regexp.MustCompile(`\+\d{1,3}[\s\-.]?\(?\d{2,4}\)?[\s\-.]?\d{2,4}[\s\-.]?\d{2,4}(?:[\s\-.]?\d{2,4})?`),
	regexp.MustCompile(`\(\d{3}\)\s*\d{3}[\s\-]?\d{2}[\s\-]?\d{2}`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{2}\b`),
}

var contactPattern = regexp.MustCompile(`\S*@\S+`)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// StripMarkup removes every HTML tag from s and decodes entities.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

// MaskPII replaces phone numbers and anything shaped like an email or
// @handle. It returns the masked text and how many of each were replaced.
func MaskPII(s string) (string, int, int) {
	phones := 0
	for _, pattern := range phonePatterns {
		s = pattern.ReplaceAllStringFunc(s, func(string) string {
			phones++
			return phoneMask
		})
	}
	contacts := 0
	s = contactPattern.ReplaceAllStringFunc(s, func(string) string {
		contacts++
		return contactMask
	})
	return s, phones, contacts
}

// Clean normalizes line endings, drops lines without visible characters,
// and joins the remaining lines as blank-line separated paragraphs.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = excessNewlines.ReplaceAllString(s, "\n\n")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if hasVisible(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n\n")
}

func hasVisible(s string) bool {
	for _, r := range s {
		if unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
