package events

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Async decouples callers from a slow sink. Events are queued in a bounded
// buffer and delivered by one worker; when the buffer is full the event is
// dropped and logged.
type Async struct {
	next    Sink
	queue   chan Event
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the delivery worker. buffer below 1 is raised to 1.
func NewAsync(next Sink, buffer int, timeout time.Duration, logger *slog.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		queue:   make(chan Event, buffer),
		logger:  logger,
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues event without blocking.
func (a *Async) Record(ctx context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- event:
	default:
		a.logger.WarnContext(ctx, "audit event dropped, sink buffer full",
			"type", event.Type,
			"booking_id", event.BookingID,
		)
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Record(ctx, event); err != nil {
			a.logger.Warn("audit event delivery failed",
				"type", event.Type,
				"booking_id", event.BookingID,
				"error", err,
			)
		}
		cancel()
	}
}

// Close stops accepting events, drains the queue and closes the wrapped sink
// when it holds resources.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	if c, ok := a.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
