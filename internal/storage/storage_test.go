package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podforge/internal/logging"
	"podforge/internal/storage"
)

func TestRelAndResolve(t *testing.T) {
	root := t.TempDir()
	layout := storage.NewLayout(root)

	abs := layout.TaskFile("task-1", storage.MixedFile)
	rel, err := layout.Rel(abs)
	if err != nil {
		t.Fatalf("Rel failed: %v", err)
	}
	if rel != "task-1/mixed.mp3" {
		t.Fatalf("unexpected rel %q", rel)
	}
	back, err := layout.Resolve(rel)
	if err != nil || back != abs {
		t.Fatalf("Resolve = %q, %v", back, err)
	}

	if _, err := layout.Rel(filepath.Join(filepath.Dir(root), "elsewhere")); !errors.Is(err, storage.ErrOutsideRoot) {
		t.Fatalf("expected escape error, got %v", err)
	}
	if _, err := layout.Resolve("../etc/passwd"); !errors.Is(err, storage.ErrOutsideRoot) {
		t.Fatalf("expected escape error, got %v", err)
	}
	if _, err := layout.Resolve("/etc/passwd"); !errors.Is(err, storage.ErrOutsideRoot) {
		t.Fatalf("expected absolute path to be rejected, got %v", err)
	}
}

func TestEnsureTaskDirRejectsTraversal(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	for _, id := range []string{"", "..", "a/b"} {
		if _, err := layout.EnsureTaskDir(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
	dir, err := layout.EnsureTaskDir("abc")
	if err != nil {
		t.Fatalf("EnsureTaskDir failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("task dir missing: %v", err)
	}
	if got := layout.SpeakerFile("abc", "2"); filepath.Base(got) != "voice_2.mp3" {
		t.Fatalf("unexpected speaker file %q", got)
	}
}

func TestCleanStaleSkipsCachesAndRecentDirs(t *testing.T) {
	root := t.TempDir()
	layout := storage.NewLayout(root)
	old := time.Now().Add(-48 * time.Hour)

	for _, name := range []string{"old-task", "tts_cache", "tts_previews", "new-task"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if name != "new-task" {
			if err := os.Chtimes(filepath.Join(root, name), old, old); err != nil {
				t.Fatalf("chtimes %s: %v", name, err)
			}
		}
	}

	result := layout.CleanStale(24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || filepath.Base(result.Removed[0]) != "old-task" {
		t.Fatalf("unexpected removals: %v", result.Removed)
	}
	for _, name := range []string{"tts_cache", "tts_previews", "new-task"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Fatalf("%s should survive: %v", name, err)
		}
	}
}

func TestCleanStaleMissingRoot(t *testing.T) {
	layout := storage.NewLayout(filepath.Join(t.TempDir(), "absent"))
	result := layout.CleanStale(time.Hour, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
