package workflow

import (
	"context"
	"log/slog"
	"sync"

	"podforge/internal/logging"
	"podforge/internal/queue"
	"podforge/internal/store"
)

// Runner drives one task through the pipeline.
type Runner interface {
	Run(ctx context.Context, taskID string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, taskID string) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, taskID string) error { return f(ctx, taskID) }

// Manager coordinates the task queue and its single worker.
type Manager struct {
	store  *store.Store
	queue  *queue.Queue
	runner Runner
	logger *slog.Logger

	mu        sync.RWMutex
	started   bool
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastTask  string
	processed int64
}

// NewManager constructs a workflow manager. A nil runner is allowed so the
// daemon can accept submissions in a degraded state; StartWorker then fails.
func NewManager(st *store.Store, runner Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:  st,
		queue:  queue.New(),
		runner: runner,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
}

// Enqueue appends a task id to the FIFO. It never blocks.
func (m *Manager) Enqueue(taskID string) {
	m.queue.Push(taskID)
	m.logger.Debug("task enqueued",
		logging.String(logging.FieldTaskID, taskID),
		logging.Int("queue_pending", m.queue.Len()),
		logging.String(logging.FieldEventType, "task_enqueued"),
	)
}

// QueueSize reports how many ids are waiting for the worker.
func (m *Manager) QueueSize() int {
	return m.queue.Len()
}
