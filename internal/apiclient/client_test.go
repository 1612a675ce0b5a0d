package apiclient_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podforge/internal/api"
	"podforge/internal/apiclient"
	"podforge/internal/broadcast"
	"podforge/internal/daemon"
	"podforge/internal/extract"
	"podforge/internal/script"
	"podforge/internal/storage"
	"podforge/internal/store"
	"podforge/internal/testsupport"
	"podforge/internal/workflow"
)

func newServer(t *testing.T, token string) (*httptest.Server, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithToken(token))
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(st, nil, nil)
	hub := broadcast.NewHub(st, cfg.SubscribePollInterval(), nil)
	d, err := daemon.New(cfg, daemon.Deps{
		Store:    st,
		Workflow: mgr,
		API: api.NewService(st, mgr, hub, cfg.API.BaseURL, nil).WithPreviews(api.Previews{
			Extractor: extract.New(cfg, nil),
			Scripts:   script.NewGenerator(nil, 1, nil),
		}),
		Layout: storage.NewLayout(cfg.Paths.StorageDir),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	server := httptest.NewServer(d.Handler())
	t.Cleanup(server.Close)
	return server, st
}

func TestSubmitStatusAndCancel(t *testing.T) {
	server, _ := newServer(t, "secret")
	client := apiclient.New(server.URL+"/", "secret")
	ctx := context.Background()

	if err := client.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	resp, err := client.Submit(ctx, "session-a", api.SubmitRequest{Source: "text", Text: "Hello there"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.SessionID != "session-a" {
		t.Fatalf("expected session reuse, got %s", resp.SessionID)
	}

	status, err := client.Task(ctx, resp.TaskID)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if status.Status != "pending" {
		t.Fatalf("expected pending, got %s", status.Status)
	}
	tasks, err := client.Tasks(ctx, "session-a", []string{"pending"}, 10)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("Tasks: %v (%d)", err, len(tasks))
	}

	if err := client.Cancel(ctx, resp.TaskID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := client.Cancel(ctx, resp.TaskID); !apiclient.IsNotFound(err) {
		t.Fatalf("expected not found on repeat cancel, got %v", err)
	}
	if _, err := client.Task(ctx, "missing"); !apiclient.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTokenRequired(t *testing.T) {
	server, _ := newServer(t, "secret")
	client := apiclient.New(server.URL, "")
	_, err := client.Status(context.Background())
	apiErr, ok := err.(*apiclient.Error)
	if !ok || apiErr.StatusCode != 401 {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestSubmitFileUploads(t *testing.T) {
	server, st := newServer(t, "")
	client := apiclient.New(server.URL, "")
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\n\nSome text."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, err := client.SubmitFile(context.Background(), "", path, api.SubmitRequest{Style: "formal", Speed: 1.5})
	if err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	task, err := st.GetTask(context.Background(), resp.TaskID)
	if err != nil || task == nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Params.Source != store.SourceFile || task.Params.FileName != "notes.md" || task.Params.Speed != 1.5 {
		t.Fatalf("unexpected params %+v", task.Params)
	}
}

func TestExtractAndScriptPreviews(t *testing.T) {
	server, st := newServer(t, "")
	client := apiclient.New(server.URL, "")
	ctx := context.Background()

	extracted, err := client.Extract(ctx, api.ExtractRequest{Source: "text", Text: "Call +7 (999) 123-45-67 today."})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if extracted.Removed["phones"] != 1 || extracted.Length == 0 {
		t.Fatalf("unexpected extraction %+v", extracted)
	}

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\n\nSome text."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fromFile, err := client.ExtractFile(ctx, path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if fromFile.Text == "" || len(fromFile.Removed) != 0 {
		t.Fatalf("unexpected file extraction %+v", fromFile)
	}

	scripted, err := client.Script(ctx, api.ScriptRequest{Text: "A short note."})
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if len(scripted.Script) != 1 || scripted.Script[0].Text != "A short note." {
		t.Fatalf("unexpected script %+v", scripted.Script)
	}

	tasks, err := st.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("previews must not create tasks, found %d", len(tasks))
	}
}

func TestWatchStopsAtTerminalStatus(t *testing.T) {
	server, st := newServer(t, "secret")
	client := apiclient.New(server.URL, "secret")
	task := testsupport.NewTask(t, st, "s", "hello")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seen := make(chan string, 8)
	done := make(chan error, 1)
	var last *api.TaskStatus
	go func() {
		var err error
		last, err = client.Watch(ctx, task.ID, func(status api.TaskStatus) { seen <- status.Status })
		done <- err
	}()

	if got := <-seen; got != "pending" {
		t.Fatalf("expected pending first, got %s", got)
	}
	if _, err := st.CancelTask(context.Background(), task.ID); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if last == nil || last.Status != "cancelled" {
		t.Fatalf("expected cancelled final status, got %+v", last)
	}

	if _, err := client.Watch(ctx, "missing", nil); !apiclient.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
