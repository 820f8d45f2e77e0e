// Package events fans booking lifecycle events out to external sinks after the
// storage transaction that produced them has committed. Sinks are
// fire-and-forget: callers log a Record error and carry on.
package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Event types published by the service.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCheckedIn = "booking.checked_in"
	TypeBookingCanceled  = "booking.canceled"
	TypeBookingCompleted = "booking.completed"
	TypeBookingNoShow    = "booking.no_show"
	TypeBookingExpired   = "booking.expired"
	TypeBookingRejected  = "booking.rejected"
	TypeUserLogin        = "auth.login"
	TypeUserCreated      = "auth.user_created"
	TypeDeskRegistered   = "catalog.desk_registered"
)

// Event is one audited action.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Outcome    string    `json:"outcome"`
	Component  string    `json:"component"`
	Message    string    `json:"message"`
	BookingID  string    `json:"booking_id,omitempty"`
	DeskCode   string    `json:"desk_code,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key is the partition/routing key of the event: the desk when known, else the user.
func (e Event) Key() string {
	if e.DeskCode != "" {
		return e.DeskCode
	}
	return e.UserID
}

// Sink receives events.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Event) error { return nil }

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging at Info to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit event",
		"type", event.Type,
		"user_id", event.UserID,
		"outcome", event.Outcome,
		"component", event.Component,
		"booking_id", event.BookingID,
		"desk_code", event.DeskCode,
		"message", event.Message,
	)
	return nil
}

// Multi records every event to each sink in turn.
type Multi []Sink

// Record implements Sink. Every sink is attempted; failures are joined.
func (m Multi) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
