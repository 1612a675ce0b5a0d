package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podforge/internal/config"
	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/services"
	"podforge/internal/storage"
	"podforge/internal/store"
)

const defaultStageTimeout = 10 * time.Minute

// Deps are the executor's collaborators. Covers may be nil when no image
// provider is configured; every other field is required.
type Deps struct {
	Store    *store.Store
	Layout   *storage.Layout
	Extract  TextExtractor
	Scripts  ScriptGenerator
	Segments SegmentSynthesizer
	Mixer    AudioMixer
	Covers   CoverGenerator
	Feeds    FeedBuilder
	Prober   DurationProber
	Tagger   MetadataTagger
	Music    MusicLibrary
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Executor runs pending tasks.
type Executor struct {
	deps          Deps
	logger        *slog.Logger
	maxTextLength int
	gainDB        float64
	defaultVoice  string
	stageTimeout  time.Duration
	now           func() time.Time
}

// NewExecutor validates deps and captures pipeline settings from cfg.
func NewExecutor(cfg *config.Config, deps Deps) (*Executor, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Layout == nil:
		return nil, errors.New("pipeline: storage layout is required")
	case deps.Extract == nil, deps.Scripts == nil, deps.Segments == nil:
		return nil, errors.New("pipeline: extract, script and speech collaborators are required")
	case deps.Mixer == nil, deps.Feeds == nil, deps.Prober == nil, deps.Tagger == nil, deps.Music == nil:
		return nil, errors.New("pipeline: audio and feed collaborators are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(&config.Config{})
	}
	e := &Executor{
		deps:          deps,
		logger:        logging.NewComponentLogger(deps.Logger, "pipeline"),
		maxTextLength: cfg.Pipeline.MaxTextLength,
		gainDB:        cfg.Pipeline.MusicGainDB,
		defaultVoice:  cfg.TTS.DefaultVoice,
		stageTimeout:  cfg.StageTimeout(),
		now:           time.Now,
	}
	if e.stageTimeout <= 0 {
		e.stageTimeout = defaultStageTimeout
	}
	return e, nil
}

// Run executes the task if it is still pending. Missing, running, and
// terminal tasks are left alone. Stage failures are persisted on the task
// and reported to the notifier; the returned error covers only problems
// that prevented that bookkeeping.
func (e *Executor) Run(ctx context.Context, taskID string) error {
	task, err := e.deps.Store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	ctx = services.WithTaskID(ctx, taskID)
	if task == nil {
		logging.WithContext(ctx, e.logger).Debug("task vanished before execution", logging.String(logging.FieldEventType, "task_missing"))
		return nil
	}
	ctx = services.WithSessionID(ctx, task.SessionID)
	logger := logging.WithContext(ctx, e.logger)
	if task.Status != store.StatusPending {
		logger.Debug("task not pending; skipping",
			logging.String("status", string(task.Status)),
			logging.String(logging.FieldEventType, "task_skipped"),
		)
		return nil
	}

	r := &run{exec: e, task: task, logger: logger, started: e.now()}
	return r.execute(ctx)
}
