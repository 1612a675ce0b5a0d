package daemon_test

import (
	"context"
	"testing"
	"time"

	"podforge/internal/api"
	"podforge/internal/audio"
	"podforge/internal/broadcast"
	"podforge/internal/config"
	"podforge/internal/daemon"
	"podforge/internal/extract"
	"podforge/internal/retention"
	"podforge/internal/script"
	"podforge/internal/services/speech"
	"podforge/internal/storage"
	"podforge/internal/store"
	"podforge/internal/testsupport"
	"podforge/internal/tts"
	"podforge/internal/workflow"
)

type fakeVoices struct{ voices []speech.Voice }

func (f fakeVoices) ListVoices(context.Context) ([]speech.Voice, bool) { return f.voices, true }

type fakePreviews struct{ path string }

func (f fakePreviews) Path(context.Context, tts.Voice) (string, error) { return f.path, nil }
func (f fakePreviews) Preload(context.Context, []tts.Voice) int { return 0 }

type harness struct {
	cfg    *config.Config
	store  *store.Store
	mgr    *workflow.Manager
	layout *storage.Layout
	daemon *daemon.Daemon
}

func newHarness(t *testing.T, runner workflow.Runner, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return newHarnessWithConfig(t, cfg, runner)
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config, runner workflow.Runner) *harness {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(st, runner, nil)
	hub := broadcast.NewHub(st, cfg.SubscribePollInterval(), nil)
	layout := storage.NewLayout(cfg.Paths.StorageDir)
	d, err := daemon.New(cfg, daemon.Deps{
		Store:    st,
		Workflow: mgr,
		API: api.NewService(st, mgr, hub, cfg.API.BaseURL, nil).WithPreviews(api.Previews{
			Extractor:     extract.New(cfg, nil),
			Scripts:       script.NewGenerator(nil, 1, nil),
			MaxTextLength: cfg.Pipeline.MaxTextLength,
		}),
		Sweeper: retention.NewSweeper(cfg, st, layout, nil),
		Layout:  layout,
		Voices:  fakeVoices{voices: []speech.Voice{{ID: "alloy", Name: "Alloy"}}},
		Music:   audio.NewLibrary(cfg.Paths.MusicDir),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return &harness{cfg: cfg, store: st, mgr: mgr, layout: layout, daemon: d}
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, daemon.Deps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, workflow.RunnerFunc(func(context.Context, string) error { return nil }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !h.daemon.Running() {
		t.Fatal("expected daemon to report running")
	}
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	status := h.daemon.Status(ctx)
	if !status.WorkerRunning {
		t.Fatalf("expected worker running, got %+v", status)
	}

	h.daemon.Stop()
	if h.daemon.Running() {
		t.Fatal("expected daemon stopped")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	noop := workflow.RunnerFunc(func(context.Context, string) error { return nil })
	first := newHarness(t, noop)
	second := newHarnessWithConfig(t, first.cfg, noop)
	ctx := context.Background()

	if err := first.daemon.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.daemon.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
	first.daemon.Stop()
	if err := second.daemon.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
}

func TestStartRecoversInterruptedAndPendingTasks(t *testing.T) {
	processed := make(chan string, 4)
	h := newHarness(t, workflow.RunnerFunc(func(_ context.Context, id string) error {
		processed <- id
		return nil
	}))
	interrupted := testsupport.StartTask(t, h.store, testsupport.NewTask(t, h.store, "s", "one"))
	pending := testsupport.NewTask(t, h.store, "s", "two")

	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case id := <-processed:
		if id != pending.ID {
			t.Fatalf("expected pending task %s to run, got %s", pending.ID, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending task was not processed")
	}

	got, err := h.store.GetTask(context.Background(), interrupted.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != store.StatusFailed || got.Stage != store.StageExtract {
		t.Fatalf("expected interrupted task failed at extract, got %s/%s", got.Status, got.Stage)
	}
}

func TestStartWithInvalidScheduleStillRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.Schedule = "not a cron spec"
	h := newHarnessWithConfig(t, cfg, workflow.RunnerFunc(func(context.Context, string) error { return nil }))
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !h.daemon.Running() {
		t.Fatal("expected daemon running")
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t, nil)
	sent, message, err := h.daemon.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || message == "" {
		t.Fatalf("expected unsent with message, got %v %q", sent, message)
	}
}
