package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/persistence"
)

// auditor turns service outcomes into audit rows and sink events. Successful
// changes carry their row into the storage transaction; failures are recorded
// on their own. Sinks are notified after the fact and never fail the caller.
type auditor struct {
	store  persistence.AuditRepository
	sink   events.Sink
	now    func() time.Time
	logger *slog.Logger
}

func newAuditor(store persistence.AuditRepository, sink events.Sink, now func() time.Time, logger *slog.Logger) *auditor {
	if sink == nil {
		sink = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &auditor{store: store, sink: sink, now: now, logger: defaultLogger(logger)}
}

func (a *auditor) event(eventType, userID, outcome, component, message string) events.Event {
	return events.Event{
		Type:       eventType,
		UserID:     userID,
		Outcome:    outcome,
		Component:  component,
		Message:    message,
		OccurredAt: a.now(),
	}
}

// entry is the audit row of event, for writing inside a storage transaction.
func (a *auditor) entry(event events.Event) *persistence.AuditEntry {
	return &persistence.AuditEntry{
		UserID:      event.UserID,
		Outcome:     event.Outcome,
		Component:   event.Component,
		Description: event.Message,
		CreatedAt:   event.OccurredAt,
	}
}

// publish notifies the sinks of a committed change.
func (a *auditor) publish(ctx context.Context, event events.Event) {
	if err := a.sink.Record(ctx, event); err != nil {
		a.logger.WarnContext(ctx, "audit sink rejected event", "type", event.Type, "error", err)
	}
}

// failure records an attempt that changed nothing.
func (a *auditor) failure(ctx context.Context, event events.Event) {
	event.Outcome = persistence.OutcomeFailure
	a.record(ctx, event)
}

// record writes event as a standalone audit row and notifies the sinks.
func (a *auditor) record(ctx context.Context, event events.Event) {
	if a.store != nil {
		if err := a.store.RecordAudit(ctx, *a.entry(event)); err != nil {
			a.logger.WarnContext(ctx, "audit entry dropped", "type", event.Type, "error", err)
		}
	}
	a.publish(ctx, event)
}
