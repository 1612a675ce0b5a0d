// Package store persists sessions, tasks, and results in SQLite.
//
// Every task mutation is a guarded compare-and-swap on the row version, so
// a worker holding a stale snapshot can never overwrite a cancellation or a
// newer update. Terminal tasks reject all further writes with
// ErrTaskTerminal.
package store
