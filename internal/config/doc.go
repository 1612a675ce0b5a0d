// Package config loads, normalizes, and validates podforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads provider secrets from .env files, and
// honours environment overrides such as PODFORGE_LLM_API_KEY. The Config type
// centralizes every knob the daemon, pipeline, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
