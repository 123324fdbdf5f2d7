package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/nimasrn/campaign-dispatcher/pkg/prom"
	"github.com/nimasrn/campaign-dispatcher/pkg/worker"
)

const publishTimeout = 5 * time.Second

// NotifyStore persists notify records.
type NotifyStore interface {
	Create(ctx context.Context, n *model.Notify) (*model.Notify, error)
}

// EventPublisher delivers progress events to connected clients.
type EventPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type Config struct {
	Workers    int
	BufferSize int
}

// Sink records notify rows synchronously and emits progress events on a
// bounded worker pool. Emit never blocks; events are dropped when the pool
// is saturated.
type Sink struct {
	store     NotifyStore
	publisher EventPublisher
	workers   *worker.WorkerManager
	done      chan struct{}
}

func NewSink(store NotifyStore, publisher EventPublisher, config Config) *Sink {
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	s := &Sink{
		store:     store,
		publisher: publisher,
		workers:   worker.NewWorkerManager(config.BufferSize, config.Workers, nil),
		done:      make(chan struct{}),
	}
	s.workers.SetWorker(s.publish)
	return s
}

// Start runs the publishing workers until Stop is called.
func (s *Sink) Start() {
	go func() {
		defer close(s.done)
		_ = s.workers.Start()
	}()
}

// Stop flushes buffered events and waits for the workers, at most timeout.
func (s *Sink) Stop(timeout time.Duration) error {
	s.workers.Exit()
	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for %d buffered events", s.workers.GetUnreadCount())
	}
}

func (s *Sink) Record(ctx context.Context, n model.Notify) error {
	if n.Type == "" {
		n.Type = model.NotifyTypeScheduled
	}
	if _, err := s.store.Create(ctx, &n); err != nil {
		return fmt.Errorf("failed to record notify: %w", err)
	}
	return nil
}

func (s *Sink) Emit(event model.ProgressEvent) {
	if s.publisher == nil {
		return
	}
	if !s.workers.TryEnqueue(event) {
		prom.IncEventDropped()
		logger.Warn("Progress event dropped, buffer full", "calendar_id", event.CalendarID, "in_progress", event.InProgress, "total", event.Total)
	}
}

func (s *Sink) publish(workerIndex int, job interface{}) {
	event, ok := job.(model.ProgressEvent)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	meta := map[string]string{
		"type":        event.Type,
		"calendar_id": strconv.FormatInt(event.CalendarID, 10),
	}
	if _, err := s.publisher.PublishJSON(ctx, event, meta); err != nil {
		logger.Warn("Failed to publish progress event", "worker", workerIndex, "calendar_id", event.CalendarID, "error", err)
		return
	}
	prom.IncEventPublished()
}
