// Package api is the core facade the transports call and the wire types
// they exchange. Service submits, reads, cancels, and subscribes to tasks;
// the DTOs here are what the HTTP daemon encodes and the CLI client decodes.
//
// # Key Types
//
// SubmitRequest: validated submission parameters. Invalid input is rejected
// with services.ErrValidation before any row exists.
//
// TaskStatus: observer snapshot with public artifact URLs for completed tasks.
//
// Podcast: one published episode as listed by the library view.
//
// # Design Notes
//
// JSON tags are snake_case. Timestamps use RFC3339 with milliseconds. Stored
// result paths never leave the server; clients get URLs under base_url.
package api
