// Package notifications delivers task events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Each event type can be switched off in config.toml; suppressed events are
// dropped without error so callers never need to check settings themselves.
package notifications
