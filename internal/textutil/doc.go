// Package textutil provides small text helpers shared across packages:
// rune-safe truncation, single-line excerpts, and filename sanitization.
package textutil
