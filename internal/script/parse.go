package script

import (
	"regexp"
	"strings"

	"podforge/internal/textutil"
)

// maxRawFallback bounds the single utterance used when nothing parses.
const maxRawFallback = 5000

var (
	// "Host 1: text", "Speaker 2 - text", "**Host 1:** text"
	labelledLine = regexp.MustCompile(`(?i)^\**\s*(?:host|speaker|participant|narrator)\s*([12])?\s*\**\s*[:\-]\s*\**\s*(.+)$`)
	// "A: text", "B - text", "1. text"
	shortLine = regexp.MustCompile(`^([AB12])\s*[.:\-]\s*(.+)$`)
)

// Parse splits a generated script into utterances. Lines without a speaker
// prefix continue the previous reply. In monologue mode every reply belongs
// to speaker 1. If nothing parses, the raw text becomes a single reply.
func Parse(raw string, monologue bool) []Utterance {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if raw == "" {
		return nil
	}

	var out []Utterance
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if speaker, text, ok := matchLine(line, out); ok {
			if monologue {
				speaker = SpeakerOne
			}
			if text = strings.TrimSpace(strings.Trim(text, "*")); text != "" {
				out = append(out, Utterance{Speaker: speaker, Text: text})
			}
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].Text += " " + line
		}
	}

	if len(out) == 0 {
		return []Utterance{{Speaker: SpeakerOne, Text: textutil.Truncate(raw, maxRawFallback)}}
	}
	return out
}

func matchLine(line string, previous []Utterance) (string, string, bool) {
	if m := labelledLine.FindStringSubmatch(line); m != nil {
		speaker := m[1]
		if speaker == "" {
			speaker = alternate(previous)
		}
		return speaker, m[2], true
	}
	if m := shortLine.FindStringSubmatch(line); m != nil {
		speaker := SpeakerTwo
		if m[1] == "A" || m[1] == "1" {
			speaker = SpeakerOne
		}
		return speaker, m[2], true
	}
	return "", "", false
}

// alternate picks the other speaker when a label carries no number.
func alternate(previous []Utterance) string {
	if len(previous) == 0 || previous[len(previous)-1].Speaker == SpeakerTwo {
		return SpeakerOne
	}
	return SpeakerTwo
}
