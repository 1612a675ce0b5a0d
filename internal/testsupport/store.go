package testsupport

import (
	"context"
	"testing"

	"podforge/internal/config"
	"podforge/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewTask creates a pending text task for tests using the provided store.
func NewTask(t testing.TB, st *store.Store, sessionID, text string) *store.Task {
	t.Helper()

	task, err := st.CreateTask(context.Background(), sessionID, store.Params{
		Source: store.SourceText,
		Text:   text,
		Format: "podcast",
	})
	if err != nil {
		t.Fatalf("store.CreateTask: %v", err)
	}
	return task
}

// StartTask moves a pending task to running at the first stage and returns
// the updated row.
func StartTask(t testing.TB, st *store.Store, task *store.Task) *store.Task {
	t.Helper()

	upd := task.Update()
	upd.Status = store.StatusRunning
	upd.Stage = store.StageExtract
	upd.ActivityMessage = "Preparing…"
	updated, err := st.ApplyUpdate(context.Background(), task.ID, upd)
	if err != nil {
		t.Fatalf("store.ApplyUpdate: %v", err)
	}
	return updated
}
