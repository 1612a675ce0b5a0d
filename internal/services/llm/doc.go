// Package llm provides an OpenAI-compatible chat completion client used to
// write podcast scripts.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive the reply text.
// Client.HealthCheck: verify the API key and model answer at all.
//
// # Retry Behaviour
//
// The client retries HTTP 408/429/5xx responses, network timeouts, and
// replies with empty content using exponential backoff (base 1s, max 10s,
// 5 attempts by default). Retry-After is honoured when present. Context
// cancellation aborts retries immediately.
//
// When no API key is configured callers should not construct a client; the
// script package falls back to using the source text directly.
package llm
