package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Stage names one phase of the fixed pipeline order.
type Stage string

const (
	StageNone       Stage = ""
	StageExtract    Stage = "extract"
	StageScript     Stage = "script"
	StageTTS        Stage = "tts"
	StageMusicCover Stage = "music_cover"
	StageRSS        Stage = "rss"
	StageDone       Stage = "done"
)

var stageOrder = []Stage{StageNone, StageExtract, StageScript, StageTTS, StageMusicCover, StageRSS, StageDone}

// Index returns the position of the stage in the pipeline order, or -1 for
// unknown values.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// MaxActivityLength bounds activity and error messages stored on a task.
const MaxActivityLength = 500

// SourceKind identifies where a task reads its text from.
type SourceKind string

const (
	SourceText SourceKind = "text"
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// Params holds everything the pipeline needs to run a task. It is persisted
// as JSON and treated as opaque by the store.
type Params struct {
	Source         SourceKind        `json:"source"`
	Text           string            `json:"text,omitempty"`
	FilePath       string            `json:"file_path,omitempty"`
	FileName       string            `json:"file_name,omitempty"`
	URL            string            `json:"url,omitempty"`
	Format         string            `json:"format,omitempty"`
	Style          string            `json:"style,omitempty"`
	Duration       string            `json:"duration,omitempty"`
	Presentation   string            `json:"presentation,omitempty"`
	VoiceMap       map[string]string `json:"voice_map,omitempty"`
	Music          string            `json:"music,omitempty"`
	MusicGainDB    *float64          `json:"music_gain_db,omitempty"`
	Speed          float64           `json:"speed,omitempty"`
	SeparateTracks bool              `json:"separate_tracks,omitempty"`
	Title          string            `json:"title,omitempty"`
	Description    string            `json:"description,omitempty"`
	CoverPrompt    string            `json:"cover_prompt,omitempty"`
}

// Session groups tasks submitted from one client context.
type Session struct {
	ID        string
	CreatedAt time.Time
}

// Task is one pipeline run.
type Task struct {
	ID              string
	SessionID       string
	Status          Status
	Stage           Stage
	Progress        int
	ActivityMessage string
	ErrorMessage    string
	ResultID        string
	Params          Params
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Result is the immutable output bundle of a completed task. Paths are
// relative to the storage root.
type Result struct {
	ID              string
	TaskID          string
	AudioPath       string
	CoverPath       string
	FeedPath        string
	SpeakerTracks   map[string]string
	Title           string
	Description     string
	DurationSeconds int
	CreatedAt       time.Time
}

// TaskUpdate is the single mutation applied to a running task. Version must
// match the stored version; the update replaces every observable field.
type TaskUpdate struct {
	Version         int64
	Status          Status
	Stage           Stage
	Progress        int
	ActivityMessage string
	ErrorMessage    string
}

// Update returns a TaskUpdate seeded with the task's current observable state.
func (t *Task) Update() TaskUpdate {
	return TaskUpdate{
		Version:         t.Version,
		Status:          t.Status,
		Stage:           t.Stage,
		Progress:        t.Progress,
		ActivityMessage: t.ActivityMessage,
		ErrorMessage:    t.ErrorMessage,
	}
}

// StatusView is the read snapshot observers receive.
type StatusView struct {
	TaskID          string
	SessionID       string
	Status          Status
	Stage           Stage
	Progress        int
	ActivityMessage string
	ErrorMessage    string
	Result          *Result
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusKey is the comparable projection of a StatusView used to detect changes.
type StatusKey struct {
	Status          Status
	Stage           Stage
	Progress        int
	ActivityMessage string
	ErrorMessage    string
	ResultID        string
}

// Key returns the observable tuple of the view.
func (v StatusView) Key() StatusKey {
	key := StatusKey{
		Status:          v.Status,
		Stage:           v.Stage,
		Progress:        v.Progress,
		ActivityMessage: v.ActivityMessage,
		ErrorMessage:    v.ErrorMessage,
	}
	if v.Result != nil {
		key.ResultID = v.Result.ID
	}
	return key
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	SessionID string
	Statuses  []Status
	Limit     int
}

// RetentionCounts reports rows removed by DeleteTerminalBefore.
type RetentionCounts struct {
	TaskIDs  []string
	Tasks    int64
	Results  int64
	Sessions int64
}
