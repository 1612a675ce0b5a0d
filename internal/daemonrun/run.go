package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"podforge/internal/api"
	"podforge/internal/audio"
	"podforge/internal/broadcast"
	"podforge/internal/config"
	"podforge/internal/daemon"
	"podforge/internal/deps"
	"podforge/internal/extract"
	"podforge/internal/feed"
	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/pipeline"
	"podforge/internal/retention"
	"podforge/internal/script"
	"podforge/internal/services/imagegen"
	"podforge/internal/services/llm"
	"podforge/internal/services/speech"
	"podforge/internal/storage"
	"podforge/internal/store"
	"podforge/internal/tts"
	"podforge/internal/workflow"
)

// PIDFileName is written under paths.data_dir while the daemon runs.
const PIDFileName = "podforge.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run builds every collaborator, starts the daemon, and blocks until the
// context ends or SIGINT/SIGTERM arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return err
	}

	d, err := build(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.bind and that no other podforge daemon is running"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("podforge daemon shutting down")
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	return logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
}

// build wires the pipeline, API, and retention collaborators around st.
func build(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	layout := storage.NewLayout(cfg.Paths.StorageDir)
	notifier := notifications.NewService(cfg)

	speechClient := speech.NewClient(speech.ConfigFromApp(cfg))
	library := audio.NewLibrary(cfg.Paths.MusicDir)

	// Without an llm key the generator runs offline and reads the source
	// text as a single reply.
	var completer script.Completer
	if cfg.LLMConfigured() {
		completer = llm.NewClient(llm.ConfigFromApp(cfg))
	}
	scripts := script.NewGenerator(completer, cfg.Pipeline.ScriptAttempts, logger)
	extractor := extract.New(cfg, logger)

	pipelineDeps := pipeline.Deps{
		Store:    st,
		Layout:   layout,
		Extract:  extractor,
		Scripts:  scripts,
		Segments: tts.NewCache(layout.SegmentCacheDir(), speechClient, logger),
		Mixer:    audio.NewMixer(cfg.Pipeline.FFmpegBinary, logger),
		Feeds:    feed.NewBuilder(cfg.API.BaseURL),
		Prober:   audio.NewProber(),
		Tagger:   audio.NewTagger(),
		Music:    library,
		Notifier: notifier,
		Logger:   logger,
	}
	if cfg.ImageConfigured() {
		pipelineDeps.Covers = imagegen.NewClient(imagegen.ConfigFromApp(cfg))
	}
	executor, err := pipeline.NewExecutor(cfg, pipelineDeps)
	if err != nil {
		return nil, err
	}

	manager := workflow.NewManager(st, executor, logger)
	hub := broadcast.NewHub(st, cfg.SubscribePollInterval(), logger)

	var previewSynth tts.Synthesizer
	if cfg.TTSConfigured() {
		previewSynth = speechClient
	}

	return daemon.New(cfg, daemon.Deps{
		Store:    st,
		Workflow: manager,
		API: api.NewService(st, manager, hub, cfg.API.BaseURL, logger).WithPreviews(api.Previews{
			Extractor:     extractor,
			Scripts:       scripts,
			MaxTextLength: cfg.Pipeline.MaxTextLength,
		}),
		Sweeper:  retention.NewSweeper(cfg, st, layout, logger),
		Layout:   layout,
		Voices:   speechClient,
		Previews: tts.NewPreviews(cfg.Paths.VoiceSamplesDir, layout.PreviewCacheDir(), speechClient.Model(), previewSynth, logger),
		Music:    library,
		Notifier: notifier,
		Logger:   logger,
	})
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(filepath.Join(cfg.Paths.DataDir, PIDFileName))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file contents %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	tracks, _ := audio.NewLibrary(cfg.Paths.MusicDir).List()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_configured", cfg.LLMConfigured()),
		logging.Bool("tts_configured", cfg.TTSConfigured()),
		logging.Bool("image_configured", cfg.ImageConfigured()),
		logging.Int("music_tracks", len(tracks)),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.Duration("stage_timeout", cfg.StageTimeout()),
	)
	for _, status := range deps.CheckBinaries(deps.ForConfig(cfg)) {
		if status.Available {
			logger.Info("dependency available",
				logging.String(logging.FieldEventType, "dependency_available"),
				logging.String("dependency", status.Name),
				logging.String("command", status.Command),
			)
			continue
		}
		logging.WarnWithContext(logger, "dependency missing", "dependency_missing",
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldImpact, status.Description+" will fail"),
			logging.String(logging.FieldErrorHint, "install the binary or set pipeline.ffmpeg_binary"),
		)
	}
}
