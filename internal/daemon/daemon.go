package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"podforge/internal/api"
	"podforge/internal/audio"
	"podforge/internal/config"
	"podforge/internal/deps"
	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/retention"
	"podforge/internal/services/speech"
	"podforge/internal/storage"
	"podforge/internal/store"
	"podforge/internal/tts"
	"podforge/internal/workflow"
)

// VoiceCatalog lists synthesis voices. The bool reports whether the list came
// from the provider rather than the built-in defaults.
type VoiceCatalog interface {
	ListVoices(ctx context.Context) ([]speech.Voice, bool)
}

// PreviewSource serves and warms voice previews.
type PreviewSource interface {
	Path(ctx context.Context, voice tts.Voice) (string, error)
	Preload(ctx context.Context, voices []tts.Voice) int
}

// MusicCatalog lists background tracks.
type MusicCatalog interface {
	List() ([]audio.Track, error)
	Resolve(id string) (audio.Track, bool)
}

// Deps are the collaborators the daemon serves. Voices, Previews, Music, and
// Notifier are optional.
type Deps struct {
	Store    *store.Store
	Workflow *workflow.Manager
	API      *api.Service
	Sweeper  *retention.Sweeper
	Layout   *storage.Layout
	Voices   VoiceCatalog
	Previews PreviewSource
	Music    MusicCatalog
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Daemon owns the process lifecycle.
type Daemon struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock
	server   *apiServer

	running    atomic.Bool
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	stopSweeps func()
	background sync.WaitGroup
	preloading atomic.Bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, in Deps) (*Daemon, error) {
	if cfg == nil || in.Store == nil || in.Workflow == nil || in.API == nil || in.Layout == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, api service, and storage layout")
	}
	if in.Notifier == nil {
		in.Notifier = notifications.NewService(cfg)
	}
	d := &Daemon{
		cfg:      cfg,
		deps:     in,
		logger:   logging.NewComponentLogger(in.Logger, "daemon"),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.server = newAPIServer(cfg, d, in.Logger)
	return d, nil
}

// Handler returns the HTTP API handler, for embedding and tests.
func (d *Daemon) Handler() http.Handler {
	return d.server.router
}

// Start acquires the lock, recovers interrupted work, starts the worker and
// the retention schedule, and begins serving HTTP when a bind address is set.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another podforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.ctx = runCtx
	d.cancel = cancel
	d.mu.Unlock()

	if requeued, failed, err := d.deps.Workflow.Recover(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "task recovery failed", "recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the database file and permissions"),
			logging.String(logging.FieldImpact, "pending tasks from a previous run are not processed"),
		)
	} else if requeued > 0 || failed > 0 {
		d.logger.Info("recovered tasks from previous run",
			logging.Int("requeued", requeued),
			logging.Int64("interrupted", failed),
		)
	}
	if err := d.deps.Workflow.StartWorker(runCtx); err != nil {
		logging.ErrorWithContext(d.logger, "workflow worker failed to start; submissions will queue", "worker_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm and tts configuration"),
		)
	}

	if d.deps.Sweeper != nil && d.cfg.Retention.Schedule != "" {
		stop, err := d.deps.Sweeper.Schedule(runCtx, d.cfg.Retention.Schedule)
		if err != nil {
			logging.WarnWithContext(d.logger, "retention schedule rejected", "retention_schedule_invalid",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix retention.schedule in config"),
				logging.String(logging.FieldImpact, "expired tasks are only removed by manual cleanup"),
			)
		} else {
			d.mu.Lock()
			d.stopSweeps = stop
			d.mu.Unlock()
		}
	}

	if err := d.server.start(runCtx); err != nil {
		d.stopBackground()
		d.deps.Workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.running.Store(true)
	d.logger.Info("podforge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.API.Bind),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. The worker
// finishes its current call first; a task left running is failed by the
// next start's recovery.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.server.stop()
	d.stopBackground()
	d.deps.Workflow.Stop()
	d.background.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("podforge daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

func (d *Daemon) stopBackground() {
	d.mu.Lock()
	cancel := d.cancel
	stop := d.stopSweeps
	d.ctx = nil
	d.cancel = nil
	d.stopSweeps = nil
	d.mu.Unlock()
	if stop != nil {
		stop()
	}
	if cancel != nil {
		cancel()
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.deps.Store.Close()
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the data behind GET /api/status.
func (d *Daemon) Status(ctx context.Context) api.ServiceStatus {
	summary := d.deps.Workflow.Status(ctx)
	counts := make(map[string]int, len(summary.TaskStats))
	for _, status := range store.AllStatuses() {
		counts[string(status)] = summary.TaskStats[status]
	}
	return api.ServiceStatus{
		LLMConfigured:   d.cfg.LLMConfigured(),
		TTSConfigured:   d.cfg.TTSConfigured(),
		ImageConfigured: d.cfg.ImageConfigured(),
		WorkerRunning:   summary.Running,
		QueuePending:    summary.QueuePending,
		Processed:       summary.Processed,
		LastError:       summary.LastError,
		Tasks:           counts,
		Dependencies:    dependencyStatuses(d.cfg),
	}
}

func dependencyStatuses(cfg *config.Config) []api.Dependency {
	results := deps.CheckBinaries(deps.ForConfig(cfg))
	out := make([]api.Dependency, 0, len(results))
	for _, r := range results {
		out = append(out, api.Dependency{
			Name:        r.Name,
			Command:     r.Command,
			Description: r.Description,
			Optional:    r.Optional,
			Available:   r.Available,
			Detail:      r.Detail,
		})
	}
	return out
}

// Cleanup runs one retention sweep.
func (d *Daemon) Cleanup(ctx context.Context) (api.CleanupReport, error) {
	if d.deps.Sweeper == nil {
		return api.CleanupReport{}, errors.New("retention sweeper not configured")
	}
	report, err := d.deps.Sweeper.Run(ctx)
	return api.CleanupReport{
		TaskDirs: report.TaskDirs,
		Tasks:    report.Tasks,
		Results:  report.Results,
		Sessions: report.Sessions,
		Uploads:  report.Uploads,
		LogFiles: report.LogFiles,
	}, err
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.deps.Notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// preloadPreviews warms previews in the background. Only one preload runs at
// a time.
func (d *Daemon) preloadPreviews(voices []tts.Voice) {
	if d.deps.Previews == nil || len(voices) == 0 || !d.preloading.CompareAndSwap(false, true) {
		return
	}
	d.mu.Lock()
	ctx := d.ctx
	if ctx != nil {
		d.background.Add(1)
	}
	d.mu.Unlock()
	if ctx == nil {
		d.preloading.Store(false)
		return
	}
	go func() {
		defer d.background.Done()
		defer d.preloading.Store(false)
		generated := d.deps.Previews.Preload(ctx, voices)
		if generated > 0 {
			d.logger.Info("voice previews preloaded", logging.Int("generated", generated))
		}
	}()
}
