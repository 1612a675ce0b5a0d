// Package script turns extracted text into an ordered list of podcast
// utterances.
//
// Generator builds a prompt from the format, style, duration, and
// presentation options, asks a Completer for a script, and parses speaker
// prefixed lines into Utterances. An error or an empty parse counts as a
// failed attempt; only exhausting every attempt surfaces an error.
package script
