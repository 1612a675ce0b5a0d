// Package logging assembles structured slog loggers and formatting helpers used
// across podforge services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with task IDs, stages, and correlation IDs. It also provides a no-op
// logger for tests and the log-file pruning used by the retention sweep.
package logging
