package store

import "errors"

var (
	// ErrTaskNotFound is returned by mutations addressed to an unknown task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskTerminal is returned when a mutation targets a completed, failed, or cancelled task.
	ErrTaskTerminal = errors.New("task is in a terminal state")
	// ErrVersionConflict is returned when the update's version no longer matches the row.
	ErrVersionConflict = errors.New("task version conflict")
	// ErrInvalidTransition is returned when an update would move status, stage, or progress backwards.
	ErrInvalidTransition = errors.New("invalid task transition")
)
