package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podforge/internal/logging"
	"podforge/internal/services"
	"podforge/internal/store"
)

// DefaultPollInterval is used when the hub is built with a non-positive interval.
const DefaultPollInterval = 500 * time.Millisecond

// StatusReader is the read side of the store the hub needs.
type StatusReader interface {
	StatusView(ctx context.Context, taskID string) (*store.StatusView, error)
}

// Hub fans task status out to observers.
type Hub struct {
	reader   StatusReader
	interval time.Duration
	logger   *slog.Logger
}

// NewHub returns a hub polling reader every interval.
func NewHub(reader StatusReader, interval time.Duration, logger *slog.Logger) *Hub {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Hub{
		reader:   reader,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "broadcast"),
	}
}

// Status returns the current snapshot, or nil when the task does not exist.
func (h *Hub) Status(ctx context.Context, taskID string) (*store.StatusView, error) {
	return h.reader.StatusView(ctx, taskID)
}

// Subscribe streams snapshots for taskID. The first snapshot is sent
// immediately; later ones only when the observable tuple changes. The
// channel closes after a terminal status is delivered or when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, taskID string) (<-chan store.StatusView, error) {
	first, err := h.reader.StatusView(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "subscribe", fmt.Sprintf("task %s", taskID), nil)
	}

	out := make(chan store.StatusView, 1)
	go h.watch(ctx, taskID, *first, out)
	return out, nil
}

func (h *Hub) watch(ctx context.Context, taskID string, current store.StatusView, out chan<- store.StatusView) {
	defer close(out)
	logger := h.logger.With(logging.String(logging.FieldTaskID, taskID))

	if !send(ctx, out, current) || current.Status.IsTerminal() {
		return
	}
	last := current.Key()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		view, err := h.reader.StatusView(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("status poll failed", logging.Error(err))
			continue
		}
		if view == nil {
			// Removed by retention while being watched.
			logger.Debug("task disappeared while subscribed")
			return
		}
		if view.Key() == last {
			continue
		}
		last = view.Key()
		if !send(ctx, out, *view) || view.Status.IsTerminal() {
			return
		}
	}
}

func send(ctx context.Context, out chan<- store.StatusView, view store.StatusView) bool {
	select {
	case out <- view:
		return true
	case <-ctx.Done():
		return false
	}
}
