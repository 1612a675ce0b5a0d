// Package pipeline drives one task through extract, script, tts,
// music_cover, and rss.
//
// Every stage opens and closes with a versioned checkpoint write. The write
// is also the cancellation point: once a task has been cancelled the store
// rejects the next checkpoint and the executor stops at that stage boundary
// without touching the row again. A stage that is already running is never
// interrupted by a cancel.
//
// Collaborators are small interfaces so tests and alternative providers can
// replace any of them without changing the executor.
package pipeline
