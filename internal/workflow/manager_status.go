package workflow

import (
	"context"

	"podforge/internal/logging"
	"podforge/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool
	QueuePending int
	Processed    int64
	LastTask     string
	LastError    string
	TaskStats    map[store.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Processed: m.processed,
		LastTask:  m.lastTask,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()
	summary.QueuePending = m.queue.Len()

	if m.store != nil {
		stats, err := m.store.CountByStatus(ctx)
		if err != nil {
			m.logger.Warn("failed to read task stats", logging.Error(err))
		}
		summary.TaskStats = stats
	}
	return summary
}
