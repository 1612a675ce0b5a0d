// Package retention removes expired task artifacts, rows, uploads, and logs.
// Sweeper.Run does one pass; Schedule runs it on a cron spec inside the daemon.
package retention
