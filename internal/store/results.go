package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetResult returns the result recorded for taskID, or nil when the task has
// not completed.
func (s *Store) GetResult(ctx context.Context, taskID string) (*Result, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+resultColumns+` FROM results WHERE task_id = ?`, taskID)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// ListResults returns the most recent results first. A non-positive limit
// returns every row.
func (s *Store) ListResults(ctx context.Context, limit int) ([]*Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// StatusView assembles the observer snapshot for a task. A missing task
// yields nil, nil.
func (s *Store) StatusView(ctx context.Context, taskID string) (*StatusView, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil || task == nil {
		return nil, err
	}
	view := &StatusView{
		TaskID:          task.ID,
		SessionID:       task.SessionID,
		Status:          task.Status,
		Stage:           task.Stage,
		Progress:        task.Progress,
		ActivityMessage: task.ActivityMessage,
		ErrorMessage:    task.ErrorMessage,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
	}
	if task.Status == StatusCompleted {
		result, err := s.GetResult(ctx, taskID)
		if err != nil {
			return nil, err
		}
		view.Result = result
	}
	return view, nil
}
