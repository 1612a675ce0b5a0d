// Package speech talks to an OpenAI-compatible text-to-speech endpoint.
//
// Synthesize posts one utterance to the primary URL and falls back to the
// secondary URL on any error. Responses may carry raw audio bytes or JSON
// with a base64 "audio" or "data" field. ListVoices asks the provider for
// its voice catalogue and falls back to built-in lists when it cannot.
package speech
