package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File names inside a task directory.
const (
	VoiceFile = "voice.mp3"
	MixedFile = "mixed.mp3"
	CoverFile = "cover.jpg"
	FeedFile  = "feed.xml"

	ttsCacheDir   = "tts_cache"
	previewsDir   = "tts_previews"
	speakerPrefix = "voice_"
)

// ErrOutsideRoot is returned when a path would escape the storage root.
var ErrOutsideRoot = errors.New("path escapes storage root")

// Layout maps tasks and caches onto the storage directory.
type Layout struct {
	root string
}

// NewLayout returns a Layout rooted at root.
func NewLayout(root string) *Layout {
	return &Layout{root: filepath.Clean(root)}
}

// Root returns the storage root.
func (l *Layout) Root() string { return l.root }

// TaskDir returns the directory holding a task's artifacts.
func (l *Layout) TaskDir(taskID string) string {
	return filepath.Join(l.root, taskID)
}

// EnsureTaskDir creates the task directory when missing.
func (l *Layout) EnsureTaskDir(taskID string) (string, error) {
	if strings.TrimSpace(taskID) == "" || strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return "", fmt.Errorf("invalid task id %q", taskID)
	}
	dir := l.TaskDir(taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task dir: %w", err)
	}
	return dir, nil
}

// TaskFile returns the path of name inside the task directory.
func (l *Layout) TaskFile(taskID, name string) string {
	return filepath.Join(l.TaskDir(taskID), name)
}

// SpeakerFile returns the per-speaker track path for speaker.
func (l *Layout) SpeakerFile(taskID, speaker string) string {
	return l.TaskFile(taskID, speakerPrefix+speaker+".mp3")
}

// SegmentCacheDir holds content-addressed synthesis output.
func (l *Layout) SegmentCacheDir() string {
	return filepath.Join(l.root, ttsCacheDir)
}

// PreviewCacheDir holds synthesized voice previews.
func (l *Layout) PreviewCacheDir() string {
	return filepath.Join(l.root, previewsDir)
}

// IsCacheDir reports whether name is one of the reserved cache directories.
func IsCacheDir(name string) bool {
	return name == ttsCacheDir || name == previewsDir
}

// Rel converts an absolute path under the root into the stored relative form.
func (l *Layout) Rel(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	rel, err := filepath.Rel(l.root, filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return filepath.ToSlash(rel), nil
}

// Resolve converts a stored relative path back into an absolute path.
func (l *Layout) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	joined := filepath.Join(l.root, filepath.FromSlash(rel))
	if _, err := l.Rel(joined); err != nil {
		return "", err
	}
	return joined, nil
}
