package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timestampLayout is fixed-width so stored timestamps order lexicographically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const taskColumns = "id, session_id, status, stage, progress, activity_message, error_message, result_id, params_json, version, created_at, updated_at"

const resultColumns = "id, task_id, audio_path, cover_path, feed_path, speaker_tracks_json, title, description, duration_seconds, created_at"

type scanner interface{ Scan(dest ...any) error }

func scanTask(row scanner) (*Task, error) {
	var (
		task         Task
		statusStr    string
		stageStr     string
		errorMessage sql.NullString
		resultID     sql.NullString
		paramsRaw    sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := row.Scan(
		&task.ID,
		&task.SessionID,
		&statusStr,
		&stageStr,
		&task.Progress,
		&task.ActivityMessage,
		&errorMessage,
		&resultID,
		&paramsRaw,
		&task.Version,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	task.Status = Status(statusStr)
	task.Stage = Stage(stageStr)
	task.ErrorMessage = errorMessage.String
	task.ResultID = resultID.String
	if paramsRaw.Valid && paramsRaw.String != "" {
		if err := json.Unmarshal([]byte(paramsRaw.String), &task.Params); err != nil {
			return nil, fmt.Errorf("decode params for task %s: %w", task.ID, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	return &task, nil
}

func scanResult(row scanner) (*Result, error) {
	var (
		result     Result
		coverPath  sql.NullString
		tracksRaw  sql.NullString
		createdRaw string
	)
	if err := row.Scan(
		&result.ID,
		&result.TaskID,
		&result.AudioPath,
		&coverPath,
		&result.FeedPath,
		&tracksRaw,
		&result.Title,
		&result.Description,
		&result.DurationSeconds,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	result.CoverPath = coverPath.String
	if tracksRaw.Valid && tracksRaw.String != "" {
		if err := json.Unmarshal([]byte(tracksRaw.String), &result.SpeakerTracks); err != nil {
			return nil, fmt.Errorf("decode speaker tracks for result %s: %w", result.ID, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		result.CreatedAt = created
	}
	return &result, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func now() string {
	return formatTime(time.Now())
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
