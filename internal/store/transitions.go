package store

import "fmt"

// validateUpdate enforces the task lifecycle rules against the stored row:
// status only moves forward, stage never regresses, and progress never
// decreases within a run. Completion and cancellation have their own paths.
func validateUpdate(current *Task, upd TaskUpdate) error {
	if current.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, current.ID, current.Status)
	}
	if upd.Version != current.Version {
		return fmt.Errorf("%w: have %d, row is at %d", ErrVersionConflict, upd.Version, current.Version)
	}

	switch upd.Status {
	case StatusRunning, StatusFailed:
	case StatusCompleted:
		return fmt.Errorf("%w: completion must go through CompleteTask", ErrInvalidTransition)
	case StatusCancelled:
		return fmt.Errorf("%w: cancellation must go through CancelTask", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: %s -> %q", ErrInvalidTransition, current.Status, upd.Status)
	}

	idx := upd.Stage.Index()
	if idx < 0 || upd.Stage == StageDone {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, upd.Stage)
	}
	if idx < current.Stage.Index() {
		return fmt.Errorf("%w: stage %s -> %s", ErrInvalidTransition, current.Stage, upd.Stage)
	}

	if upd.Progress < 0 || upd.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrInvalidTransition, upd.Progress)
	}
	if current.Status == StatusRunning && upd.Progress < current.Progress {
		return fmt.Errorf("%w: progress %d -> %d", ErrInvalidTransition, current.Progress, upd.Progress)
	}
	return nil
}
