// Package cover builds image prompts for episode artwork.
package cover

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"podforge/internal/textutil"
)

const (
	basePrompt = "Professional podcast cover art, abstract modern illustration, subtle graphic elements and icons, clean design"
	// NoTextSuffix keeps lettering off the generated image.
	NoTextSuffix = ", no text, no letters, no words, no typography, visual only, illustration and icons only"

	maxPromptRunes = 1000
	maxThemeWords  = 8
)

var nonLatinLetter = runes.Predicate(func(r rune) bool {
	return unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r)
})

// Prompt returns the image prompt for an episode. A custom prompt is used
// when it is written in Latin script; otherwise a theme is derived from the
// title, or from the text when the title is empty.
func Prompt(title, text, custom string) string {
	body := strings.TrimSpace(custom)
	if body == "" || !IsLatin(body) {
		body = basePrompt
		source := strings.TrimSpace(title)
		if source == "" {
			source = text
		}
		if theme := Theme(source); theme != "" {
			body += ", theme: " + theme
		}
	}
	body = strings.TrimSuffix(body, NoTextSuffix)
	budget := maxPromptRunes - len([]rune(NoTextSuffix))
	return textutil.Truncate(body, budget) + NoTextSuffix
}

// Theme reduces s to at most eight Latin-script words. Accents are folded
// and letters from other scripts are dropped.
func Theme(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(nonLatinLetter), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	words := make([]string, 0, maxThemeWords)
	for _, field := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	}) {
		if strings.Trim(field, "-'") == "" {
			continue
		}
		words = append(words, field)
		if len(words) == maxThemeWords {
			break
		}
	}
	return strings.Join(words, " ")
}

// IsLatin reports whether every letter in s is Latin script.
func IsLatin(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return true
}
