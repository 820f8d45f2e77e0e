package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// DefaultSweepInterval is how often the reconciler runs when none is configured.
const DefaultSweepInterval = time.Minute

// ReconcilerDeps captures the collaborators of Reconciler.
type ReconcilerDeps struct {
	Bookings persistence.BookingRepository
	Audit    persistence.AuditRepository
	Sink     events.Sink
	Interval time.Duration
	Grace    time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// Reconciler applies the time-driven status transitions: no-shows and expired
// pending bookings are canceled, finished active bookings are completed.
type Reconciler struct {
	bookings persistence.BookingRepository
	policy   scheduler.SweepPolicy
	interval time.Duration
	audit    *auditor
	now      func() time.Time
	logger   *slog.Logger

	run       sync.Mutex
	lifecycle sync.Mutex
	started   bool
	done      chan struct{}
	stopped   chan struct{}
}

// NewReconciler constructs a Reconciler. Non-positive durations fall back to
// the defaults.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	if deps.Interval <= 0 {
		deps.Interval = DefaultSweepInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := defaultLogger(deps.Logger)
	return &Reconciler{
		bookings: deps.Bookings,
		policy:   scheduler.NewSweepPolicy(deps.Grace),
		interval: deps.Interval,
		audit:    newAuditor(deps.Audit, deps.Sink, deps.Now, logger),
		now:      deps.Now,
		logger:   logger,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// RunOnce performs a single sweep. Each transition is its own compare-and-set
// write; bookings that changed since they were read are counted as skipped.
// Overlapping calls are serialized.
func (r *Reconciler) RunOnce(ctx context.Context) (result SweepResult, err error) {
	if r == nil || r.bookings == nil {
		err = fmt.Errorf("Reconciler is not configured")
		return
	}
	r.run.Lock()
	defer r.run.Unlock()

	now := r.now()
	logger := serviceLogger(ctx, r.logger, "Reconciler", "RunOnce", "now", now)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sweep failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "sweep finished",
			"evaluated", result.Evaluated,
			"transitions", len(result.Transitions),
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}()

	var candidates []scheduler.Booking
	candidates, err = r.bookings.ListSweepCandidates(ctx, now, r.policy.NoShowCutoff(now))
	if err != nil {
		err = &StorageError{Op: "list sweep candidates", Err: err}
		return
	}
	result.Evaluated = len(candidates)

	for _, booking := range candidates {
		if err = ctx.Err(); err != nil {
			return
		}
		transition, due := r.policy.Evaluate(booking, now)
		if !due {
			continue
		}

		event := r.audit.event(sweepEventType(transition.Rule), booking.UserID, persistence.OutcomeSuccess, ComponentReconciler,
			fmt.Sprintf("booking %s of desk %s moved from %s to %s (%s)", booking.ID, booking.DeskCode, transition.From, transition.To, transition.Rule))
		event.BookingID = booking.ID
		event.DeskCode = booking.DeskCode

		_, cerr := r.bookings.ChangeStatus(ctx, persistence.StatusChange{
			BookingID: booking.ID,
			From:      transition.From,
			To:        transition.To,
			At:        now,
		}, r.audit.entry(event))
		switch {
		case cerr == nil:
			result.Transitions = append(result.Transitions, transition)
			r.audit.publish(ctx, event)
		case errors.Is(cerr, persistence.ErrStatusMismatch), errors.Is(cerr, persistence.ErrNotFound):
			result.Skipped++
			logger.DebugContext(ctx, "booking changed during sweep", "booking_id", booking.ID, "error", cerr)
		default:
			result.Failed++
			logger.WarnContext(ctx, "sweep transition failed", "booking_id", booking.ID, "rule", string(transition.Rule), "error", cerr)
		}
	}
	return
}

// Start runs a sweep immediately and then every interval until ctx is done or
// Stop is called. Calling Start twice has no effect.
func (r *Reconciler) Start(ctx context.Context) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.started {
		return
	}
	r.started = true

	go func() {
		defer close(r.stopped)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.InfoContext(ctx, "reconciler started", "interval", r.interval.String())
		r.sweep(ctx)
		for {
			select {
			case <-ticker.C:
				r.sweep(ctx)
			case <-r.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (r *Reconciler) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if !r.started {
		return
	}
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	<-r.stopped
	r.logger.Info("reconciler stopped")
}

// sweep runs one pass and swallows its error so the loop keeps going.
func (r *Reconciler) sweep(ctx context.Context) {
	_, _ = r.RunOnce(ctx)
}

func sweepEventType(rule scheduler.SweepRule) string {
	switch rule {
	case scheduler.RuleNoShow:
		return events.TypeBookingNoShow
	case scheduler.RuleExpired:
		return events.TypeBookingExpired
	default:
		return events.TypeBookingCompleted
	}
}
