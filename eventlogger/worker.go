package eventlogger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Worker persists events in the background so callers on the balance path
// never wait on the event sink.
type Worker struct {
	eventCh chan Event
	logger  EventLogger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

func NewWorker(logger EventLogger, bufferSize int) *Worker {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		eventCh: make(chan Event, bufferSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining events before shutdown", "remaining_events", len(w.eventCh))
				for len(w.eventCh) > 0 {
					w.save(context.Background(), <-w.eventCh)
				}
				return
			case event := <-w.eventCh:
				// w.ctx only signals shutdown; a queued event is saved either way
				w.save(context.Background(), event)
			}
		}
	})
}

func (w *Worker) save(ctx context.Context, event Event) {
	if err := w.logger.Save(ctx, event); err != nil {
		projectID, _ := event.ProjectID()
		slog.Error("failed to save event", "error", err, "event_type", event.Type, "project_id", projectID)
	}
}

// Log enqueues the event. A full buffer drops the event instead of blocking.
func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		w.dropped.Add(1)
		slog.Warn("event channel full, dropping event", "event_type", event.Type)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
