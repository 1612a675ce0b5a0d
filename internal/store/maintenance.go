package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DeleteTerminalBefore removes terminal tasks last updated before cutoff.
// Results cascade with their task; sessions left without tasks and created
// before cutoff are removed as well.
func (s *Store) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (RetentionCounts, error) {
	ctx = ensureContext(ctx)
	stamp := formatTime(cutoff)
	var counts RetentionCounts
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		counts = RetentionCounts{}
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM tasks WHERE status IN (?, ?, ?) AND updated_at < ? ORDER BY updated_at`,
			StatusCompleted, StatusFailed, StatusCancelled, stamp,
		)
		if err != nil {
			return fmt.Errorf("select expired tasks: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			counts.TaskIDs = append(counts.TaskIDs, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if len(counts.TaskIDs) > 0 {
			args := make([]any, 0, len(counts.TaskIDs))
			for _, id := range counts.TaskIDs {
				args = append(args, id)
			}
			in := makePlaceholders(len(args))
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(1) FROM results WHERE task_id IN (`+in+`)`, args...,
			).Scan(&counts.Results); err != nil {
				return fmt.Errorf("count expired results: %w", err)
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id IN (`+in+`)`, args...)
			if err != nil {
				return fmt.Errorf("delete expired tasks: %w", err)
			}
			counts.Tasks, _ = res.RowsAffected()
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM sessions
             WHERE created_at < ?
               AND NOT EXISTS (SELECT 1 FROM tasks WHERE tasks.session_id = sessions.id)`,
			stamp,
		)
		if err != nil {
			return fmt.Errorf("delete orphan sessions: %w", err)
		}
		counts.Sessions, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return RetentionCounts{}, err
	}
	return counts, nil
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var (
			session Session
			created string
		)
		if err := rows.Scan(&session.ID, &created); err != nil {
			return nil, err
		}
		if ts, err := parseTimeString(created); err == nil {
			session.CreatedAt = ts
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
