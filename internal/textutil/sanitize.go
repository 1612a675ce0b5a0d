package textutil

import (
	"path"
	"strings"
	"unicode"
)

const maxFileNameBytes = 120

// SanitizeFileName reduces a client-supplied upload name to a safe base name.
// Directory parts from either separator style are dropped, whitespace runs
// become a single underscore, and anything other than letters, digits, dot,
// dash, or underscore is removed. Leading dots are stripped so uploads never
// become hidden files. An empty result yields "upload".
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	name = path.Base(name)

	var b strings.Builder
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
		default:
			continue
		}
		if pendingSpace {
			b.WriteByte('_')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	if len(out) > maxFileNameBytes {
		ext := path.Ext(out)
		if len(ext) > 16 {
			ext = ""
		}
		stem := TruncateBytes(strings.TrimSuffix(out, ext), maxFileNameBytes-len(ext))
		out = stem + ext
	}
	return out
}

// SanitizeToken lowercases value into a token usable in file names and URL
// paths. Letters and digits are kept, dash and underscore pass through, and
// every other run of characters collapses to one underscore. Returns
// "unknown" when nothing usable remains.
func SanitizeToken(value string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.TrimSpace(value) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastSep = false
		case r == '-' || r == '_':
			b.WriteRune(r)
			lastSep = true
		case !lastSep:
			b.WriteByte('_')
			lastSep = true
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
