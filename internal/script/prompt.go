package script

import (
	"fmt"
	"strings"

	"podforge/internal/textutil"
)

// maxPromptSource bounds how much source text goes into a prompt.
const maxPromptSource = 15000

// SystemPrompt frames every script request.
const SystemPrompt = "You are a podcast script writer. You return only the script text, with no preface or commentary."

var styleDescriptions = map[string]string{
	"formal":         "formal",
	"conversational": "conversational and relaxed",
	"energetic":      "energetic and upbeat",
}

var durationDescriptions = map[string]string{
	"very_short": "under 1 minute",
	"short":      "3-5 minutes",
	"standard":   "7-10 minutes",
}

var presentationDescriptions = map[string]string{
	"company_reminder":    "as a friendly reminder from a company: surface open questions that need attention with a light mention of its services",
	"knowledge_broadcast": "as a knowledge broadcast: \"did you know that...\", presenting the main facts and ideas of the material",
	"educational":         "as a lesson: \"to achieve this, you need to do that\", with step by step explanations and emphasis",
	"neutral":             "neutral: simply present the material as a podcast with no special angle",
	"storytelling":        "as a story: a narrative with a setup and a conclusion",
}

func describe(table map[string]string, key, fallback string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		key = fallback
	}
	if desc, ok := table[key]; ok {
		return desc
	}
	return key
}

// IsMonologue reports whether format asks for a single speaker.
func IsMonologue(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), FormatMonologue)
}

// BuildPrompt renders the user prompt for one generation request.
func BuildPrompt(text string, opts Options) string {
	style := describe(styleDescriptions, opts.Style, "conversational")
	duration := describe(durationDescriptions, opts.Duration, "standard")
	presentation := describe(presentationDescriptions, opts.Presentation, "neutral")
	source := textutil.Truncate(text, maxPromptSource)

	if IsMonologue(opts.Format) {
		return fmt.Sprintf(
			"Rewrite the following text as the script of a short single-host podcast. "+
				"Presentation: %s. Style: %s. Length: %s. "+
				"Keep the key ideas. Return only the script text.\n\n%s",
			presentation, style, duration, source,
		)
	}
	return fmt.Sprintf(
		"Rewrite the following text as a podcast script: a dialogue between two hosts (Host 1 and Host 2). "+
			"Presentation: %s. Style: %s. Length: %s. "+
			"Use natural replies, questions, and transitions between topics. Keep the key ideas. "+
			"Put every reply on its own line starting with \"Host 1:\" or \"Host 2:\". "+
			"Return only the script, with no introduction.\n\n%s",
		presentation, style, duration, source,
	)
}
