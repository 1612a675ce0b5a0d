package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/script"
	"podforge/internal/services"
	"podforge/internal/store"
	"podforge/internal/textutil"
)

// errCancelled marks a checkpoint rejected because the task went terminal.
var errCancelled = errors.New("task cancelled")

const failureActivityRunes = 200

// run holds the state of one task execution.
type run struct {
	exec    *Executor
	task    *store.Task
	logger  *slog.Logger
	started time.Time

	text     string
	lines    []script.Utterance
	voice    string
	speakers map[string]string
	mixed    string
	cover    string
}

type stageFunc func(ctx context.Context) error

func (r *run) execute(ctx context.Context) error {
	if err := r.checkpoint(ctx, store.StageExtract, 0, "Preparing…"); err != nil {
		return r.stopped(err)
	}
	r.logger.Info("task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.String("source", string(r.task.Params.Source)),
	)

	stages := []struct {
		stage store.Stage
		run   stageFunc
	}{
		{store.StageExtract, r.extract},
		{store.StageScript, r.generateScript},
		{store.StageTTS, r.synthesize},
		{store.StageMusicCover, r.musicAndCover},
		{store.StageRSS, r.publish},
	}
	for _, st := range stages {
		stageCtx := services.WithStage(ctx, string(st.stage))
		if err := r.runStage(stageCtx, st.run); err != nil {
			if errors.Is(err, errCancelled) {
				return r.stopped(err)
			}
			if ctx.Err() != nil {
				// Shutdown: leave the row running so recovery marks it interrupted.
				return ctx.Err()
			}
			return r.fail(stageCtx, st.stage, err)
		}
	}
	return nil
}

// runStage calls fn and converts a panic in a collaborator into a stage
// error, so the task still ends failed.
func (r *run) runStage(ctx context.Context, fn stageFunc) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		stage, _ := services.StageFromContext(ctx)
		logging.ErrorWithContext(logging.WithContext(ctx, r.exec.logger), "stage panicked", "stage_panic",
			logging.Any("panic", rec),
			logging.String("stack", string(debug.Stack())),
			logging.String(logging.FieldErrorHint, "report the stack trace"),
		)
		err = services.Wrap(services.ErrExternalTool, stage, "run", fmt.Sprintf("panic: %v", rec), nil)
	}()
	return fn(ctx)
}

// checkpoint persists running state at stage. A terminal row yields
// errCancelled.
func (r *run) checkpoint(ctx context.Context, stage store.Stage, progress int, activity string) error {
	upd := r.task.Update()
	upd.Status = store.StatusRunning
	upd.Stage = stage
	upd.Progress = progress
	upd.ActivityMessage = activity
	updated, err := r.exec.deps.Store.ApplyUpdate(ctx, r.task.ID, upd)
	if err != nil {
		if errors.Is(err, store.ErrTaskTerminal) {
			return fmt.Errorf("%w: %v", errCancelled, err)
		}
		return fmt.Errorf("persist checkpoint %s/%d: %w", stage, progress, err)
	}
	r.task = updated
	r.logger.Debug("checkpoint",
		logging.String(logging.FieldStage, string(stage)),
		logging.Int(logging.FieldProgress, progress),
		logging.String("activity", activity),
	)
	return nil
}

// bounded runs fn under the per-stage timeout.
func (r *run) bounded(ctx context.Context, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, r.exec.stageTimeout)
	defer cancel()
	err := fn(stageCtx)
	if err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		stage, _ := services.StageFromContext(ctx)
		return services.Wrap(services.ErrTimeout, stage, "run", fmt.Sprintf("stage exceeded %s", r.exec.stageTimeout), err)
	}
	return err
}

func (r *run) stopped(err error) error {
	if errors.Is(err, errCancelled) {
		r.logger.Info("task cancelled; stopping at stage boundary",
			logging.String(logging.FieldStage, string(r.task.Stage)),
			logging.String(logging.FieldEventType, "task_cancelled"),
		)
		return nil
	}
	return err
}

// fail records stageErr on the task, keeping its stage and progress.
func (r *run) fail(ctx context.Context, stage store.Stage, stageErr error) error {
	message := stageErr.Error()
	upd := r.task.Update()
	upd.Status = store.StatusFailed
	upd.ErrorMessage = textutil.Truncate(message, store.MaxActivityLength)
	upd.ActivityMessage = "Error: " + textutil.Truncate(message, failureActivityRunes)

	logger := logging.WithContext(ctx, r.exec.logger)
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.Int(logging.FieldProgress, r.task.Progress),
		logging.Error(stageErr),
	)

	if _, err := r.exec.deps.Store.ApplyUpdate(context.WithoutCancel(ctx), r.task.ID, upd); err != nil {
		if errors.Is(err, store.ErrTaskTerminal) {
			return r.stopped(errCancelled)
		}
		return fmt.Errorf("persist failure: %w", err)
	}

	if err := r.exec.deps.Notifier.Publish(ctx, notifications.EventTaskFailed, notifications.Payload{
		"task_id": r.task.ID,
		"stage":   string(stage),
		"error":   textutil.Truncate(message, failureActivityRunes),
	}); err != nil {
		logger.Debug("failure notification failed", logging.Error(err))
	}
	return nil
}
