package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"podforge/internal/logging"
)

// CleanupResult contains the outcome of a stale directory sweep.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes task directories whose modification time is older than
// maxAge. Cache directories are never touched.
func (l *Layout) CleanStale(maxAge time.Duration, logger *slog.Logger) CleanupResult {
	result := CleanupResult{}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: l.root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || IsCacheDir(entry.Name()) {
			continue
		}
		dirPath := filepath.Join(l.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove expired task directory", "storage_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check storage_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed expired task directory",
				logging.String("path", dirPath),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "storage_cleanup"),
			)
		}
	}
	return result
}

// RemoveTask deletes a task's directory regardless of age.
func (l *Layout) RemoveTask(taskID string) error {
	if taskID == "" || IsCacheDir(taskID) {
		return nil
	}
	return os.RemoveAll(l.TaskDir(taskID))
}
