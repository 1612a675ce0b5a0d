package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"podforge/internal/logging"
	"podforge/internal/services"
)

// StartWorker launches the worker goroutine. Only the first successful call
// starts anything; later calls are no-ops, including after Stop.
func (m *Manager) StartWorker(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	if m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow runner not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.started = true
	m.running = true
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runLoop(runCtx)
	m.logger.Info("workflow worker started",
		logging.Int("queue_pending", m.queue.Len()),
		logging.String(logging.FieldEventType, "worker_started"),
	)
	return nil
}

// Stop terminates the worker and waits for the in-flight task to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow worker stopped", logging.String(logging.FieldEventType, "worker_stopped"))
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		taskID, err := m.queue.Pop(ctx)
		if err != nil {
			return
		}
		if err := m.processTask(ctx, taskID); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
		}
	}
}

// processTask runs one id and converts a panic into an error so a single
// task can never take the loop down.
func (m *Manager) processTask(ctx context.Context, taskID string) (err error) {
	taskCtx := services.WithTaskID(ctx, taskID)
	logger := logging.WithContext(taskCtx, m.logger)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", taskID, r)
			logging.ErrorWithContext(logger, "pipeline panicked; continuing with next task", "task_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report the stack trace; a panic outside a stage leaves the row running until restart"),
			)
		}
		m.recordOutcome(taskID, err)
	}()

	err = m.runner.Run(taskCtx, taskID)
	if err != nil && !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		logging.ErrorWithContext(logger, "pipeline run returned error; continuing with next task", "task_error",
			logging.Error(err),
			logging.String("error_kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check the task status and collaborator logs"),
		)
	}
	return err
}

func (m *Manager) recordOutcome(taskID string, err error) {
	m.mu.Lock()
	m.lastTask = taskID
	m.processed++
	if err != nil {
		m.lastErr = err
	}
	m.mu.Unlock()
}
