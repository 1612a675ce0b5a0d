package api

import (
	"time"

	"podforge/internal/feed"
	"podforge/internal/store"
	"podforge/internal/textutil"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest describes a new task.
type SubmitRequest struct {
	Source         string            `json:"source" validate:"required,oneof=text file url"`
	Text           string            `json:"text,omitempty" validate:"required_if=Source text"`
	FilePath       string            `json:"file_path,omitempty" validate:"required_if=Source file"`
	FileName       string            `json:"file_name,omitempty" validate:"max=255"`
	URL            string            `json:"url,omitempty" validate:"required_if=Source url"`
	Format         string            `json:"format,omitempty" validate:"omitempty,oneof=dialog podcast monologue"`
	Style          string            `json:"style,omitempty" validate:"omitempty,oneof=formal conversational energetic"`
	Duration       string            `json:"duration,omitempty" validate:"omitempty,oneof=very_short short standard"`
	Presentation   string            `json:"presentation,omitempty" validate:"omitempty,oneof=company_reminder knowledge_broadcast educational neutral storytelling"`
	VoiceMap       map[string]string `json:"voice_map,omitempty" validate:"omitempty,max=4,dive,required,max=128"`
	Music          string            `json:"music,omitempty" validate:"max=128"`
	MusicGainDB    *float64          `json:"music_gain_db,omitempty" validate:"omitempty,gte=-60,lte=0"`
	Speed          float64           `json:"speed,omitempty"`
	SeparateTracks bool              `json:"separate_tracks,omitempty"`
	Title          string            `json:"title,omitempty" validate:"max=200"`
	Description    string            `json:"description,omitempty" validate:"max=4000"`
	CoverPrompt    string            `json:"cover_prompt,omitempty" validate:"max=1000"`
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	TaskID       string `json:"task_id"`
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	QueuePending int    `json:"queue_pending"`
}

// ExtractRequest previews the text a source would yield. File sources are
// uploaded as multipart form data; the daemon fills FilePath.
type ExtractRequest struct {
	Source   string `json:"source" validate:"required,oneof=text file url"`
	Text     string `json:"text,omitempty" validate:"required_if=Source text"`
	FilePath string `json:"-" validate:"required_if=Source file"`
	URL      string `json:"url,omitempty" validate:"required_if=Source url"`
}

// ExtractResponse is the cleaned text and what masking took out of it.
type ExtractResponse struct {
	Text    string         `json:"text"`
	Length  int            `json:"length"`
	Removed map[string]int `json:"removed"`
}

// ScriptRequest asks for a script without creating a task.
type ScriptRequest struct {
	Text         string `json:"text" validate:"required"`
	Format       string `json:"format,omitempty" validate:"omitempty,oneof=dialog podcast monologue"`
	Style        string `json:"style,omitempty" validate:"omitempty,oneof=formal conversational energetic"`
	Duration     string `json:"duration,omitempty" validate:"omitempty,oneof=very_short short standard"`
	Presentation string `json:"presentation,omitempty" validate:"omitempty,oneof=company_reminder knowledge_broadcast educational neutral storytelling"`
}

// ScriptLine is one reply of a generated script.
type ScriptLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ScriptResponse wraps a generated script.
type ScriptResponse struct {
	Script []ScriptLine `json:"script"`
}

// TaskStatus is the transport form of a status snapshot.
type TaskStatus struct {
	TaskID          string      `json:"task_id"`
	SessionID       string      `json:"session_id"`
	Status          string      `json:"status"`
	Stage           string      `json:"stage"`
	Progress        int         `json:"progress"`
	ActivityMessage string      `json:"activity_message"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	Result          *TaskResult `json:"result,omitempty"`
	CreatedAt       string      `json:"created_at,omitempty"`
	UpdatedAt       string      `json:"updated_at,omitempty"`
}

// Terminal reports whether the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return store.Status(s.Status).IsTerminal()
}

// TaskResult carries public URLs for a completed task's artifacts.
type TaskResult struct {
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	DurationSeconds int               `json:"duration_seconds"`
	AudioURL        string            `json:"audio_url"`
	CoverURL        string            `json:"cover_url,omitempty"`
	FeedURL         string            `json:"feed_url"`
	SpeakerTracks   map[string]string `json:"speaker_tracks,omitempty"`
}

// Podcast is one completed episode in the library listing.
type Podcast struct {
	TaskID          string `json:"task_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	AudioURL        string `json:"audio_url"`
	CoverURL        string `json:"cover_url,omitempty"`
	FeedURL         string `json:"feed_url"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []TaskStatus `json:"tasks"`
}

// PodcastListResponse wraps a podcast listing.
type PodcastListResponse struct {
	Podcasts []Podcast `json:"podcasts"`
}

// CancelResponse reports a cancellation.
type CancelResponse struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
}

// ServiceStatus summarizes daemon state for GET /status.
type ServiceStatus struct {
	LLMConfigured   bool           `json:"llm_configured"`
	TTSConfigured   bool           `json:"tts_configured"`
	ImageConfigured bool           `json:"image_configured"`
	WorkerRunning   bool           `json:"worker_running"`
	QueuePending    int            `json:"queue_pending"`
	Processed       int64          `json:"processed"`
	LastError       string         `json:"last_error,omitempty"`
	Tasks           map[string]int `json:"tasks"`
	Dependencies    []Dependency   `json:"dependencies,omitempty"`
}

// Dependency reports one external binary the pipeline invokes.
type Dependency struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Voice is one selectable synthesis voice.
type Voice struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url"`
}

// Track is one background music track.
type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// VoiceListResponse wraps the voice catalog. FromProvider is false when the
// built-in defaults are served.
type VoiceListResponse struct {
	Voices       []Voice `json:"voices"`
	FromProvider bool    `json:"from_provider"`
}

// TrackListResponse wraps the music library.
type TrackListResponse struct {
	Tracks []Track `json:"tracks"`
}

// CleanupReport mirrors a retention sweep.
type CleanupReport struct {
	TaskDirs int   `json:"task_dirs"`
	Tasks    int64 `json:"tasks"`
	Results  int64 `json:"results"`
	Sessions int64 `json:"sessions"`
	Uploads  int   `json:"uploads"`
	LogFiles int   `json:"log_files"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromStatusView converts a snapshot, resolving result paths into URLs under baseURL.
func FromStatusView(view store.StatusView, baseURL string) TaskStatus {
	status := TaskStatus{
		TaskID:          view.TaskID,
		SessionID:       view.SessionID,
		Status:          string(view.Status),
		Stage:           string(view.Stage),
		Progress:        view.Progress,
		ActivityMessage: view.ActivityMessage,
		ErrorMessage:    view.ErrorMessage,
		CreatedAt:       formatTime(view.CreatedAt),
		UpdatedAt:       formatTime(view.UpdatedAt),
	}
	if view.Result != nil {
		status.Result = fromResult(view.Result, baseURL)
	}
	return status
}

// FromTask converts a task row without its result.
func FromTask(task *store.Task) TaskStatus {
	return TaskStatus{
		TaskID:          task.ID,
		SessionID:       task.SessionID,
		Status:          string(task.Status),
		Stage:           string(task.Stage),
		Progress:        task.Progress,
		ActivityMessage: task.ActivityMessage,
		ErrorMessage:    task.ErrorMessage,
		CreatedAt:       formatTime(task.CreatedAt),
		UpdatedAt:       formatTime(task.UpdatedAt),
	}
}

// FromResult converts a stored result into a library entry.
func FromResult(result *store.Result, baseURL string) Podcast {
	urls := fromResult(result, baseURL)
	return Podcast{
		TaskID:          result.TaskID,
		Title:           result.Title,
		Description:     result.Description,
		DurationSeconds: result.DurationSeconds,
		AudioURL:        urls.AudioURL,
		CoverURL:        urls.CoverURL,
		FeedURL:         urls.FeedURL,
		CreatedAt:       formatTime(result.CreatedAt),
	}
}

func fromResult(result *store.Result, baseURL string) *TaskResult {
	out := &TaskResult{
		Title:           result.Title,
		Description:     result.Description,
		DurationSeconds: result.DurationSeconds,
		AudioURL:        feed.FileURL(baseURL, result.TaskID, feed.KindAudio),
		FeedURL:         feed.FileURL(baseURL, result.TaskID, feed.KindFeed),
	}
	if result.CoverPath != "" {
		out.CoverURL = feed.FileURL(baseURL, result.TaskID, feed.KindCover)
	}
	if len(result.SpeakerTracks) > 0 {
		out.SpeakerTracks = make(map[string]string, len(result.SpeakerTracks))
		for speaker := range result.SpeakerTracks {
			out.SpeakerTracks[speaker] = feed.FileURL(baseURL, result.TaskID, TrackKind(speaker))
		}
	}
	return out
}

// TrackKind is the files route kind serving one speaker's track.
func TrackKind(speaker string) string {
	return TrackKindPrefix + textutil.SanitizeToken(speaker)
}

// TrackKindPrefix marks per-speaker kinds on the files route.
const TrackKindPrefix = "track-"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
