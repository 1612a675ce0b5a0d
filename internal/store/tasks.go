package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"podforge/internal/textutil"
)

// CreateTask inserts a pending task for sessionID, creating the session on
// first use. An empty sessionID is replaced with a generated one.
func (s *Store) CreateTask(ctx context.Context, sessionID string, params Params) (*Task, error) {
	ctx = ensureContext(ctx)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	id := uuid.NewString()
	timestamp := now()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
			sessionID, timestamp,
		); err != nil {
			return fmt.Errorf("ensure session: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (
                id, session_id, status, stage, progress, activity_message,
                params_json, version, created_at, updated_at
            ) VALUES (?, ?, ?, ?, 0, '', ?, 1, ?, ?)`,
			id, sessionID, StatusPending, StageNone, string(paramsJSON), timestamp, timestamp,
		); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// GetTask fetches a task by identifier. A missing task yields nil, nil.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ApplyUpdate validates upd against the stored row and writes it with a
// compare-and-swap on version. The returned task carries the new version.
func (s *Store) ApplyUpdate(ctx context.Context, id string, upd TaskUpdate) (*Task, error) {
	ctx = ensureContext(ctx)
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err := validateUpdate(current, upd); err != nil {
		return nil, err
	}

	errorMessage := ""
	if upd.Status == StatusFailed {
		errorMessage = textutil.Truncate(strings.TrimSpace(upd.ErrorMessage), MaxActivityLength)
		if errorMessage == "" {
			errorMessage = "task failed"
		}
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, stage = ?, progress = ?, activity_message = ?, error_message = ?,
             version = version + 1, updated_at = ?
         WHERE id = ? AND version = ? AND status IN (?, ?)`,
		upd.Status,
		upd.Stage,
		upd.Progress,
		textutil.Truncate(upd.ActivityMessage, MaxActivityLength),
		nullableString(errorMessage),
		now(),
		id,
		upd.Version,
		StatusPending,
		StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, s.classifyLostUpdate(ctx, id)
	}
	return s.GetTask(ctx, id)
}

// classifyLostUpdate explains why a guarded update matched no row.
func (s *Store) classifyLostUpdate(ctx context.Context, id string) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case task == nil:
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	case task.Status.IsTerminal():
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, id, task.Status)
	default:
		return fmt.Errorf("%w: %s", ErrVersionConflict, id)
	}
}

// CancelTask flips a pending or running task to cancelled. It reports false
// when the task is missing or already terminal.
func (s *Store) CancelTask(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, activity_message = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled,
		"Cancelled",
		now(),
		id,
		StatusPending,
		StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("cancel task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel task rows: %w", err)
	}
	return affected > 0, nil
}

// CompleteTask records the result and marks the task completed in one
// transaction. The task must be running at the given version.
func (s *Store) CompleteTask(ctx context.Context, id string, version int64, result Result) (*Task, *Result, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(result.AudioPath) == "" || strings.TrimSpace(result.FeedPath) == "" {
		return nil, nil, fmt.Errorf("%w: result requires audio and feed paths", ErrInvalidTransition)
	}
	var tracksJSON any
	if len(result.SpeakerTracks) > 0 {
		data, err := json.Marshal(result.SpeakerTracks)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal speaker tracks: %w", err)
		}
		tracksJSON = string(data)
	}

	resultID := uuid.NewString()
	timestamp := now()
	var lost bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		lost = false
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks
             SET status = ?, stage = ?, progress = 100, activity_message = ?, error_message = NULL,
                 result_id = ?, version = version + 1, updated_at = ?
             WHERE id = ? AND version = ? AND status = ?`,
			StatusCompleted, StageDone, "Done", resultID, timestamp, id, version, StatusRunning,
		)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			lost = true
			return errLostUpdate
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			resultID,
			id,
			result.AudioPath,
			nullableString(result.CoverPath),
			result.FeedPath,
			tracksJSON,
			result.Title,
			result.Description,
			result.DurationSeconds,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		return nil
	})
	if lost {
		return nil, nil, s.classifyLostUpdate(ctx, id)
	}
	if err != nil {
		return nil, nil, err
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	stored, err := s.GetResult(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return task, stored, nil
}

var errLostUpdate = errors.New("guarded update matched no row")

// ListTasks returns tasks newest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		clauses []string
		args    []any
	)
	if sid := strings.TrimSpace(filter.SessionID); sid != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, sid)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// PendingTaskIDs returns pending task identifiers in submission order.
func (s *Store) PendingTaskIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id FROM tasks WHERE status = ? ORDER BY created_at ASC, rowid ASC`, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("pending tasks: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FailInterrupted marks tasks left running by a previous process as failed.
// Stage and progress are preserved so the failure points at the stage that
// was in flight.
func (s *Store) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	reason = textutil.Truncate(strings.TrimSpace(reason), MaxActivityLength)
	if reason == "" {
		reason = "interrupted"
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, error_message = ?, activity_message = ?, version = version + 1, updated_at = ?
         WHERE status = ?`,
		StatusFailed, reason, "Error: "+textutil.Truncate(reason, 200), now(), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted tasks: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of tasks per status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
