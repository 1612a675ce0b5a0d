package api_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"podforge/internal/api"
	"podforge/internal/broadcast"
	"podforge/internal/services"
	"podforge/internal/store"
	"podforge/internal/testsupport"
	"podforge/internal/workflow"
)

func newService(t *testing.T) (*api.Service, *store.Store, *workflow.Manager) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(st, nil, nil)
	hub := broadcast.NewHub(st, cfg.SubscribePollInterval(), nil)
	return api.NewService(st, mgr, hub, cfg.API.BaseURL, nil), st, mgr
}

func TestSubmitCreatesPendingTaskAndEnqueues(t *testing.T) {
	svc, st, mgr := newService(t)
	ctx := context.Background()

	resp, err := svc.Submit(ctx, "", api.SubmitRequest{Source: "text", Text: "Hello world", Format: "dialog"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.SessionID == "" || resp.TaskID == "" {
		t.Fatalf("expected generated ids, got %+v", resp)
	}
	if resp.Status != "pending" || resp.QueuePending != 1 || mgr.QueueSize() != 1 {
		t.Fatalf("unexpected response %+v (queue %d)", resp, mgr.QueueSize())
	}
	task, err := st.GetTask(ctx, resp.TaskID)
	if err != nil || task == nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Params.Text != "Hello world" || task.Params.Format != "dialog" {
		t.Fatalf("params not persisted: %+v", task.Params)
	}

	again, err := svc.Submit(ctx, resp.SessionID, api.SubmitRequest{Source: "text", Text: "Second"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if again.SessionID != resp.SessionID {
		t.Fatalf("expected session reuse, got %s", again.SessionID)
	}
}

func TestSubmitRejectsInvalidInputWithoutCreatingRows(t *testing.T) {
	svc, st, mgr := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  api.SubmitRequest
		want string
	}{
		{"missing source", api.SubmitRequest{Text: "x"}, "source"},
		{"unknown source", api.SubmitRequest{Source: "fax"}, "source"},
		{"text without text", api.SubmitRequest{Source: "text", Text: "   "}, "text"},
		{"file without path", api.SubmitRequest{Source: "file"}, "file_path"},
		{"relative url", api.SubmitRequest{Source: "url", URL: "/docs"}, "url"},
		{"bad style", api.SubmitRequest{Source: "text", Text: "x", Style: "shouty"}, "style"},
		{"music gain above zero", api.SubmitRequest{Source: "text", Text: "x", MusicGainDB: floatPtr(5)}, "music_gain_db must be at most 0"},
		{"music gain too low", api.SubmitRequest{Source: "text", Text: "x", MusicGainDB: floatPtr(-90)}, "music_gain_db must be at least -60"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, "s", tc.req)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
	tasks, err := st.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 || mgr.QueueSize() != 0 {
		t.Fatalf("invalid submissions created %d rows and %d queue entries", len(tasks), mgr.QueueSize())
	}
}

func TestSubmitKeepsOutOfRangeSpeedForFallback(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	for _, speed := range []float64{12, -1} {
		resp, err := svc.Submit(ctx, "", api.SubmitRequest{Source: "text", Text: "Hello", Speed: speed, MusicGainDB: floatPtr(-20)})
		if err != nil {
			t.Fatalf("Submit speed %v: %v", speed, err)
		}
		task, err := st.GetTask(ctx, resp.TaskID)
		if err != nil || task == nil {
			t.Fatalf("GetTask: %v", err)
		}
		if task.Params.Speed != speed {
			t.Fatalf("expected stored speed %v, got %v", speed, task.Params.Speed)
		}
		if task.Params.MusicGainDB == nil || *task.Params.MusicGainDB != -20 {
			t.Fatalf("expected music gain -20, got %v", task.Params.MusicGainDB)
		}
	}
}

func TestGetStatusAndCancel(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	status, err := svc.GetStatus(ctx, "missing")
	if err != nil || status != nil {
		t.Fatalf("expected nil status for missing task, got %+v (%v)", status, err)
	}

	resp, err := svc.Submit(ctx, "s", api.SubmitRequest{Source: "url", URL: "https://example.com/post"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ok, err := svc.Cancel(ctx, resp.TaskID)
	if err != nil || !ok {
		t.Fatalf("Cancel: %v %v", ok, err)
	}
	ok, err = svc.Cancel(ctx, resp.TaskID)
	if err != nil || ok {
		t.Fatalf("second cancel should report false, got %v %v", ok, err)
	}
	status, err = svc.GetStatus(ctx, resp.TaskID)
	if err != nil || status == nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Status != "cancelled" || !status.Terminal() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestSubscribeEndsAfterTerminalStatus(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	resp, err := svc.Submit(ctx, "s", api.SubmitRequest{Source: "text", Text: "Hello"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ch, err := svc.Subscribe(ctx, resp.TaskID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := svc.Cancel(ctx, resp.TaskID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	var last api.TaskStatus
	timeout := time.After(2 * time.Second)
	for {
		select {
		case status, ok := <-ch:
			if !ok {
				if last.Status != "cancelled" {
					t.Fatalf("stream closed before terminal status, last %+v", last)
				}
				return
			}
			last = status
		case <-timeout:
			t.Fatal("subscription did not close")
		}
	}
}

func TestFromStatusViewBuildsPublicURLs(t *testing.T) {
	view := store.StatusView{
		TaskID: "abc",
		Status: store.StatusCompleted,
		Stage:  store.StageDone,
		Result: &store.Result{
			TaskID:          "abc",
			AudioPath:       "abc/mixed.mp3",
			FeedPath:        "abc/feed.xml",
			SpeakerTracks:   map[string]string{"Host": "abc/voice_host.mp3"},
			DurationSeconds: 42,
		},
	}
	status := api.FromStatusView(view, "https://pods.example")
	if status.Result == nil {
		t.Fatal("expected result")
	}
	if status.Result.AudioURL != "https://pods.example/api/files/abc/mp3" {
		t.Fatalf("unexpected audio url %q", status.Result.AudioURL)
	}
	if status.Result.CoverURL != "" {
		t.Fatalf("cover url should be empty without a cover, got %q", status.Result.CoverURL)
	}
	if status.Result.SpeakerTracks["Host"] != "https://pods.example/api/files/abc/track-host" {
		t.Fatalf("unexpected track url %q", status.Result.SpeakerTracks["Host"])
	}
}

func floatPtr(v float64) *float64 { return &v }
