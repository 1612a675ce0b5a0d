package workflow

import (
	"context"
	"fmt"

	"podforge/internal/logging"
)

// interruptedReason is stored on tasks a previous process left running.
const interruptedReason = "interrupted by daemon restart"

// Recover fails tasks left running by a previous process and re-enqueues
// every pending task in submission order. It should run before StartWorker.
func (m *Manager) Recover(ctx context.Context) (requeued int, failed int64, err error) {
	if m.store == nil {
		return 0, 0, nil
	}
	failed, err = m.store.FailInterrupted(ctx, interruptedReason)
	if err != nil {
		return 0, 0, fmt.Errorf("fail interrupted tasks: %w", err)
	}
	if failed > 0 {
		logging.WarnWithContext(m.logger, "failed tasks interrupted by restart", "tasks_interrupted",
			logging.Int64("count", failed),
			logging.String(logging.FieldErrorHint, "resubmit the affected documents"),
			logging.String(logging.FieldImpact, "in-flight tasks from the previous run are marked failed"),
		)
	}

	ids, err := m.store.PendingTaskIDs(ctx)
	if err != nil {
		return 0, failed, fmt.Errorf("list pending tasks: %w", err)
	}
	for _, id := range ids {
		m.queue.Push(id)
	}
	if len(ids) > 0 {
		m.logger.Info("re-enqueued pending tasks",
			logging.Int("count", len(ids)),
			logging.String(logging.FieldEventType, "tasks_requeued"),
		)
	}
	return len(ids), failed, nil
}
