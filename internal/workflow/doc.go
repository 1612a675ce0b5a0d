// Package workflow owns the single pipeline worker.
//
// A Manager pairs the in-memory queue with one goroutine that pops task ids
// and hands them to a Runner, strictly one at a time and in submission
// order. Errors and panics from a single task are logged and the loop moves
// on. On startup, Recover fails tasks a previous process left running and
// re-enqueues pending rows so nothing submitted before a restart is lost.
package workflow
