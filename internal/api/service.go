package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"podforge/internal/logging"
	"podforge/internal/services"
	"podforge/internal/store"
)

// Enqueuer hands task ids to the worker.
type Enqueuer interface {
	Enqueue(taskID string)
	QueueSize() int
}

// Broadcaster serves status snapshots.
type Broadcaster interface {
	Status(ctx context.Context, taskID string) (*store.StatusView, error)
	Subscribe(ctx context.Context, taskID string) (<-chan store.StatusView, error)
}

// Service is the facade every transport goes through.
type Service struct {
	store    *store.Store
	queue    Enqueuer
	hub      Broadcaster
	baseURL  string
	validate *validator.Validate
	previews Previews
	logger   *slog.Logger
}

// NewService wires the facade.
func NewService(st *store.Store, queue Enqueuer, hub Broadcaster, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		queue:    queue,
		hub:      hub,
		baseURL:  strings.TrimRight(baseURL, "/"),
		validate: newValidator(),
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// BaseURL returns the public prefix used for artifact URLs.
func (s *Service) BaseURL() string { return s.baseURL }

// Submit validates req, creates a pending task, and enqueues it. An empty
// sessionID starts a new session.
func (s *Service) Submit(ctx context.Context, sessionID string, req SubmitRequest) (*SubmitResponse, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	task, err := s.store.CreateTask(ctx, sessionID, toParams(req))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.queue.Enqueue(task.ID)
	pending := s.queue.QueueSize()
	s.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldSessionID, task.SessionID),
		logging.String("source", req.Source),
		logging.Int("queue_pending", pending),
		logging.String(logging.FieldEventType, "task_submitted"),
	)
	return &SubmitResponse{
		TaskID:       task.ID,
		SessionID:    task.SessionID,
		Status:       string(task.Status),
		QueuePending: pending,
	}, nil
}

// Validate checks req without creating anything.
func (s *Service) Validate(req SubmitRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return services.Wrap(services.ErrValidation, "", "submit", describeValidation(err), nil)
	}
	if req.Source == string(store.SourceText) && strings.TrimSpace(req.Text) == "" {
		return services.Wrap(services.ErrValidation, "", "submit", "text is empty", nil)
	}
	if req.Source == string(store.SourceURL) && !isHTTPURL(req.URL) {
		return services.Wrap(services.ErrValidation, "", "submit", "url must be an absolute http(s) address", nil)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// GetStatus returns the task snapshot, or nil when the task does not exist.
func (s *Service) GetStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	view, err := s.hub.Status(ctx, taskID)
	if err != nil || view == nil {
		return nil, err
	}
	status := FromStatusView(*view, s.baseURL)
	return &status, nil
}

// Cancel flips a pending or running task to cancelled. It reports false for
// missing and terminal tasks. A running task stops at its next checkpoint.
func (s *Service) Cancel(ctx context.Context, taskID string) (bool, error) {
	ok, err := s.store.CancelTask(ctx, taskID)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("task cancelled",
			logging.String(logging.FieldTaskID, taskID),
			logging.String(logging.FieldEventType, "task_cancel_requested"),
		)
	}
	return ok, nil
}

// Subscribe streams snapshots until a terminal status has been delivered.
func (s *Service) Subscribe(ctx context.Context, taskID string) (<-chan TaskStatus, error) {
	views, err := s.hub.Subscribe(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := make(chan TaskStatus, 1)
	go func() {
		defer close(out)
		for view := range views {
			select {
			case out <- FromStatusView(view, s.baseURL):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ListTasks returns tasks newest first.
func (s *Service) ListTasks(ctx context.Context, filter store.TaskFilter) ([]TaskStatus, error) {
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]TaskStatus, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out, nil
}

// ListPodcasts returns the most recent completed episodes.
func (s *Service) ListPodcasts(ctx context.Context, limit int) ([]Podcast, error) {
	results, err := s.store.ListResults(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Podcast, 0, len(results))
	for _, result := range results {
		out = append(out, FromResult(result, s.baseURL))
	}
	return out, nil
}

func toParams(req SubmitRequest) store.Params {
	return store.Params{
		Source:         store.SourceKind(req.Source),
		Text:           req.Text,
		FilePath:       req.FilePath,
		FileName:       req.FileName,
		URL:            strings.TrimSpace(req.URL),
		Format:         req.Format,
		Style:          req.Style,
		Duration:       req.Duration,
		Presentation:   req.Presentation,
		VoiceMap:       req.VoiceMap,
		Music:          req.Music,
		MusicGainDB:    req.MusicGainDB,
		Speed:          req.Speed,
		SeparateTracks: req.SeparateTracks,
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		CoverPrompt:    strings.TrimSpace(req.CoverPrompt),
	}
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_if":
			parts = append(parts, field+" is required")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s exceeds %s", field, fe.Param()))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "lte":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
