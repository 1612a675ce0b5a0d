package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"podforge/internal/config"
	"podforge/internal/logging"
	"podforge/internal/storage"
	"podforge/internal/store"
)

const day = 24 * time.Hour

// Report summarizes one sweep.
type Report struct {
	TaskDirs    int
	Tasks       int64
	Results     int64
	Sessions    int64
	Uploads     int
	LogFiles    int
	DirErrors   int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Sweeper applies the retention windows from config.
type Sweeper struct {
	store     *store.Store
	layout    *storage.Layout
	uploadDir string
	logDir    string
	fileAge   time.Duration
	taskAge   time.Duration
	logAge    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewSweeper builds a sweeper over st and layout.
func NewSweeper(cfg *config.Config, st *store.Store, layout *storage.Layout, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     st,
		layout:    layout,
		uploadDir: cfg.Paths.UploadDir,
		logDir:    cfg.Paths.LogDir,
		fileAge:   time.Duration(cfg.Retention.FileDays) * day,
		taskAge:   time.Duration(cfg.Retention.TaskDays) * day,
		logAge:    time.Duration(cfg.Retention.LogDays) * day,
		logger:    logging.NewComponentLogger(logger, "retention"),
		now:       time.Now,
	}
}

// Run performs one sweep. Overlapping calls are serialized.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := Report{StartedAt: s.now()}
	var errs []error

	if s.fileAge > 0 {
		cleaned := s.layout.CleanStale(s.fileAge, s.logger)
		report.TaskDirs = len(cleaned.Removed)
		report.DirErrors = len(cleaned.Errors)
		report.Uploads = logging.CleanupOldLogs(s.logger, report.StartedAt.Add(-s.fileAge),
			logging.RetentionTarget{Dir: s.uploadDir})
	}

	if s.taskAge > 0 {
		counts, err := s.store.DeleteTerminalBefore(ctx, report.StartedAt.Add(-s.taskAge))
		if err != nil {
			errs = append(errs, fmt.Errorf("delete expired tasks: %w", err))
		} else {
			report.Tasks = counts.Tasks
			report.Results = counts.Results
			report.Sessions = counts.Sessions
			for _, id := range counts.TaskIDs {
				if err := s.layout.RemoveTask(id); err != nil {
					report.DirErrors++
					s.logger.Warn("failed to remove task directory", logging.String(logging.FieldTaskID, id), logging.Error(err))
				}
			}
		}
	}

	if s.logAge > 0 && s.logDir != "" {
		report.LogFiles = logging.CleanupOldLogs(s.logger, report.StartedAt.Add(-s.logAge), logging.RetentionTarget{
			Dir:     s.logDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(s.logDir, logging.LogFileName)},
		})
	}

	report.CompletedAt = s.now()
	s.logger.Info("retention sweep finished",
		logging.Int("task_dirs", report.TaskDirs),
		logging.Int64("tasks", report.Tasks),
		logging.Int64("results", report.Results),
		logging.Int64("sessions", report.Sessions),
		logging.Int("uploads", report.Uploads),
		logging.Int("log_files", report.LogFiles),
		logging.Duration("elapsed", report.CompletedAt.Sub(report.StartedAt)),
		logging.String(logging.FieldEventType, "retention_sweep"),
	)
	return report, errors.Join(errs...)
}

// Schedule runs the sweeper on spec until ctx ends. The returned function
// stops the scheduler and waits for a sweep in progress.
func (s *Sweeper) Schedule(ctx context.Context, spec string) (func(), error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Run(ctx); err != nil {
			logging.WarnWithContext(s.logger, "scheduled retention sweep failed", "retention_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access and storage_dir permissions"),
				logging.String(logging.FieldImpact, "expired tasks remain until the next sweep"),
			)
		}
	}); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("retention sweep scheduled", logging.String("schedule", spec))

	var once sync.Once
	stop := func() {
		once.Do(func() {
			<-c.Stop().Done()
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return stop, nil
}
