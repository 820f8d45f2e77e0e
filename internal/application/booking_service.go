package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/locking"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// DeskCatalog is the read side of the resource catalog the lifecycle needs.
type DeskCatalog interface {
	DeskExists(ctx context.Context, code string) (bool, error)
	ResolveStatusID(ctx context.Context, status scheduler.Status) (int64, error)
}

// occupyingStatuses are the statuses that hold a desk for conflict purposes.
var occupyingStatuses = []scheduler.Status{
	scheduler.StatusPending,
	scheduler.StatusActive,
	scheduler.StatusCompleted,
}

// BookingServiceDeps captures the collaborators of BookingService.
type BookingServiceDeps struct {
	Bookings    persistence.BookingRepository
	Catalog     DeskCatalog
	Audit       persistence.AuditRepository
	Sink        events.Sink
	Locker      locking.Locker
	Window      scheduler.CheckInWindow
	Reports     ReportInvalidator
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// BookingService creates, checks in and cancels bookings.
type BookingService struct {
	bookings    persistence.BookingRepository
	catalog     DeskCatalog
	locker      locking.Locker
	window      scheduler.CheckInWindow
	reports     ReportInvalidator
	audit       *auditor
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService wires the lifecycle manager. A nil Locker falls back to an
// in-process keyed mutex.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	if deps.Locker == nil {
		deps.Locker = locking.NewKeyedMutex()
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Window = scheduler.NewCheckInWindow(deps.Window.Lead, deps.Window.Grace)
	logger := defaultLogger(deps.Logger)
	return &BookingService{
		bookings:    deps.Bookings,
		catalog:     deps.Catalog,
		locker:      deps.Locker,
		window:      deps.Window,
		reports:     deps.Reports,
		audit:       newAuditor(deps.Audit, deps.Sink, deps.Now, logger),
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      logger,
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking validates the request, checks the desk for conflicts and stores
// a Pending booking.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking scheduler.Booking, err error) {
	if s == nil || s.bookings == nil || s.catalog == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}
	principal := params.Principal
	input := params.Input
	if input.UserID == "" {
		input.UserID = principal.UserID
	}
	input.DeskCode = strings.TrimSpace(input.DeskCode)

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", principal.UserID,
		"desk_code", input.DeskCode,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			if principal.authenticated() && rejected(err) {
				event := s.audit.event(events.TypeBookingRejected, principal.UserID, "", ComponentBooking,
					fmt.Sprintf("booking of desk %s from %s to %s rejected: %v", input.DeskCode, stamp(input.Start), stamp(input.End), err))
				event.DeskCode = input.DeskCode
				s.audit.failure(ctx, event)
			}
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	if !scheduler.ValidInterval(input.Start, input.End) {
		err = invalid(ErrInvalidInterval, "end", "end must be after start")
		return
	}
	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}
	if !principal.may(input.UserID) {
		err = ErrForbidden
		return
	}

	now := s.now()
	// A booking may start as far back as check-in opens, so the slot a user is
	// sitting down in can still be booked.
	if input.Start.Before(now.Add(-s.window.Lead)) {
		err = invalid(ErrStartInPast, "start", "cannot book a desk in the past")
		return
	}

	if input.DeskCode == "" {
		err = invalid(ErrUnknownDesk, "desk_code", "desk code is required")
		return
	}
	var exists bool
	exists, err = s.catalog.DeskExists(ctx, input.DeskCode)
	if err != nil {
		err = &StorageError{Op: "desk lookup", Err: err}
		return
	}
	if !exists {
		err = invalid(ErrUnknownDesk, "desk_code", fmt.Sprintf("desk %q does not exist", input.DeskCode))
		return
	}
	if _, err = s.catalog.ResolveStatusID(ctx, scheduler.StatusPending); err != nil {
		err = mapStoreError("resolve status", input.DeskCode, err)
		return
	}

	var release locking.Release
	release, err = s.lockDesk(ctx, input.DeskCode)
	if err != nil {
		return
	}
	defer release()

	candidate := scheduler.Booking{
		ID:        s.idGenerator(),
		UserID:    input.UserID,
		DeskCode:  input.DeskCode,
		Start:     input.Start.UTC(),
		End:       input.End.UTC(),
		Status:    scheduler.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.checkConflicts(ctx, candidate); err != nil {
		return
	}

	event := s.bookingEvent(events.TypeBookingCreated, principal, candidate,
		fmt.Sprintf("booked desk %s from %s to %s for %s", candidate.DeskCode, stamp(candidate.Start), stamp(candidate.End), candidate.UserID))
	if err = s.bookings.CreateBooking(ctx, candidate, s.audit.entry(event)); err != nil {
		err = mapStoreError("create booking", candidate.DeskCode, err)
		return
	}
	s.audit.publish(ctx, event)
	if s.reports != nil {
		s.reports.Invalidate()
	}

	booking = candidate
	return
}

// CheckIn moves a Pending booking to Active. It reports false without error
// when the booking does not exist. The check-in window is enforced here against
// the service clock rather than trusted from the caller.
func (s *BookingService) CheckIn(ctx context.Context, params BookingActionParams) (ok bool, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}
	principal := params.Principal
	logger := s.loggerWith(ctx, "CheckIn",
		"principal_id", principal.UserID,
		"booking_id", params.BookingID,
	)
	var current scheduler.Booking
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check in", "error", err, "error_kind", ErrorKind(err))
			if principal.authenticated() && rejected(err) {
				event := s.bookingEvent(events.TypeBookingCheckedIn, principal, current, fmt.Sprintf("check-in of booking %s rejected: %v", params.BookingID, err))
				s.audit.failure(ctx, event)
			}
			return
		}
		logger.InfoContext(ctx, "check-in processed", "found", ok)
	}()

	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	current, err = s.bookings.GetBooking(ctx, params.BookingID)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		err = &StorageError{Op: "load booking", Err: err}
		return
	}
	if !principal.may(current.UserID) {
		err = ErrForbidden
		return
	}

	switch current.Status {
	case scheduler.StatusActive:
		return true, nil
	case scheduler.StatusCanceled, scheduler.StatusCompleted:
		err = invalid(ErrInvalidTransition, "status", fmt.Sprintf("booking is %s", current.Status))
		return
	}

	now := s.now()
	if !s.window.Contains(current.Start, current.End, now) {
		err = invalid(ErrCheckInWindow, "booking_id", fmt.Sprintf("check-in is open from %s to %s",
			stamp(s.window.Opens(current.Start)), stamp(s.window.Closes(current.Start, current.End))))
		return
	}

	var release locking.Release
	release, err = s.lockDesk(ctx, current.DeskCode)
	if err != nil {
		return
	}
	defer release()

	if err = s.checkConflicts(ctx, current); err != nil {
		return
	}

	event := s.bookingEvent(events.TypeBookingCheckedIn, principal, current,
		fmt.Sprintf("checked in to desk %s for booking %s", current.DeskCode, current.ID))
	_, err = s.bookings.ChangeStatus(ctx, persistence.StatusChange{
		BookingID: current.ID,
		From:      scheduler.StatusPending,
		To:        scheduler.StatusActive,
		At:        now,
	}, s.audit.entry(event))
	switch {
	case err == nil:
		s.audit.publish(ctx, event)
		return true, nil
	case errors.Is(err, persistence.ErrNotFound):
		return false, nil
	case errors.Is(err, persistence.ErrStatusMismatch):
		latest, gerr := s.bookings.GetBooking(ctx, current.ID)
		if gerr != nil {
			err = mapStoreError("reload booking", current.DeskCode, gerr)
			return
		}
		if latest.Status == scheduler.StatusActive {
			return true, nil
		}
		err = invalid(ErrInvalidTransition, "status", fmt.Sprintf("booking is %s", latest.Status))
		return
	}
	err = mapStoreError("check in", current.DeskCode, err)
	return
}

// CancelBooking cancels a Pending or Active booking. Canceling a Canceled booking
// succeeds without change; false without error means the booking does not exist.
func (s *BookingService) CancelBooking(ctx context.Context, params BookingActionParams) (ok bool, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}
	principal := params.Principal
	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", params.BookingID,
	)
	var current scheduler.Booking
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			if principal.authenticated() && rejected(err) {
				event := s.bookingEvent(events.TypeBookingCanceled, principal, current, fmt.Sprintf("cancellation of booking %s rejected: %v", params.BookingID, err))
				s.audit.failure(ctx, event)
			}
			return
		}
		logger.InfoContext(ctx, "cancellation processed", "found", ok)
	}()

	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	current, err = s.bookings.GetBooking(ctx, params.BookingID)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		err = &StorageError{Op: "load booking", Err: err}
		return
	}
	if !principal.may(current.UserID) {
		err = ErrForbidden
		return
	}

	var release locking.Release
	release, err = s.lockDesk(ctx, current.DeskCode)
	if err != nil {
		return
	}
	defer release()

	// One retry covers a booking checked in between the read and the write.
	for attempt := 0; attempt < 2; attempt++ {
		switch current.Status {
		case scheduler.StatusCanceled:
			return true, nil
		case scheduler.StatusCompleted:
			err = invalid(ErrInvalidTransition, "status", "booking is already completed")
			return
		}

		event := s.bookingEvent(events.TypeBookingCanceled, principal, current,
			fmt.Sprintf("canceled booking %s of desk %s", current.ID, current.DeskCode))
		_, err = s.bookings.ChangeStatus(ctx, persistence.StatusChange{
			BookingID: current.ID,
			From:      current.Status,
			To:        scheduler.StatusCanceled,
			At:        s.now(),
		}, s.audit.entry(event))
		switch {
		case err == nil:
			s.audit.publish(ctx, event)
			return true, nil
		case errors.Is(err, persistence.ErrNotFound):
			return false, nil
		case !errors.Is(err, persistence.ErrStatusMismatch):
			err = mapStoreError("cancel booking", current.DeskCode, err)
			return
		}

		deskCode := current.DeskCode
		current, err = s.bookings.GetBooking(ctx, current.ID)
		if err != nil {
			err = mapStoreError("reload booking", deskCode, err)
			return
		}
	}
	err = invalid(ErrInvalidTransition, "status", fmt.Sprintf("booking is %s", current.Status))
	return
}

// FindCurrentOrNext returns the user's earliest Active booking, else their
// earliest Pending booking that has not ended yet. found is false when neither
// exists.
func (s *BookingService) FindCurrentOrNext(ctx context.Context, principal Principal, userID string) (booking scheduler.Booking, found bool, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}
	if userID == "" {
		userID = principal.UserID
	}
	logger := s.loggerWith(ctx, "FindCurrentOrNext",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to find current booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID, "found", found).InfoContext(ctx, "current booking looked up")
	}()

	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}
	if !principal.may(userID) {
		err = ErrForbidden
		return
	}

	var active []scheduler.Booking
	active, err = s.bookings.ListBookings(ctx, persistence.BookingFilter{
		UserID:   userID,
		Statuses: []scheduler.Status{scheduler.StatusActive},
		Limit:    1,
	})
	if err != nil {
		err = &StorageError{Op: "list active bookings", Err: err}
		return
	}
	if len(active) > 0 {
		return active[0], true, nil
	}

	now := s.now()
	var pending []scheduler.Booking
	pending, err = s.bookings.ListBookings(ctx, persistence.BookingFilter{
		UserID:    userID,
		Statuses:  []scheduler.Status{scheduler.StatusPending},
		EndsAfter: &now,
		Limit:     1,
	})
	if err != nil {
		err = &StorageError{Op: "list pending bookings", Err: err}
		return
	}
	if len(pending) > 0 {
		return pending[0], true, nil
	}
	return scheduler.Booking{}, false, nil
}

// GetBooking returns a booking visible to the principal.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, id string) (scheduler.Booking, error) {
	if s == nil || s.bookings == nil {
		return scheduler.Booking{}, fmt.Errorf("BookingService is not configured")
	}
	if !principal.authenticated() {
		return scheduler.Booking{}, ErrUnauthorized
	}
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return scheduler.Booking{}, mapStoreError("load booking", "", err)
	}
	if !principal.may(booking.UserID) {
		return scheduler.Booking{}, ErrForbidden
	}
	return booking, nil
}

// ListBookings returns a user's bookings ordered by start.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []scheduler.Booking, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}
	principal := params.Principal
	userID := params.UserID
	if userID == "" {
		userID = principal.UserID
	}
	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	}()

	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}
	if !principal.may(userID) {
		err = ErrForbidden
		return
	}
	for _, st := range params.Statuses {
		if !st.IsValid() {
			err = invalid(nil, "status", fmt.Sprintf("unknown status %q", st))
			return
		}
	}

	bookings, err = s.bookings.ListBookings(ctx, persistence.BookingFilter{UserID: userID, Statuses: params.Statuses})
	if err != nil {
		err = &StorageError{Op: "list bookings", Err: err}
		return
	}
	if bookings == nil {
		bookings = []scheduler.Booking{}
	}
	return
}

func (s *BookingService) lockDesk(ctx context.Context, deskCode string) (locking.Release, error) {
	release, err := s.locker.Acquire(ctx, deskCode)
	if err != nil {
		return nil, &StorageError{Op: "lock desk " + deskCode, Err: err}
	}
	return release, nil
}

// checkConflicts is the fast path: it names the bookings that already hold the
// desk. The storage transaction repeats the check authoritatively.
func (s *BookingService) checkConflicts(ctx context.Context, candidate scheduler.Booking) error {
	start, end := candidate.Start, candidate.End
	existing, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		DeskCode:     candidate.DeskCode,
		Statuses:     occupyingStatuses,
		StartsBefore: &end,
		EndsAfter:    &start,
		ExcludeID:    candidate.ID,
	})
	if err != nil {
		return &StorageError{Op: "check conflicts", Err: err}
	}
	if conflicts := scheduler.DetectConflicts(existing, candidate); len(conflicts) > 0 {
		return &ConflictError{DeskCode: candidate.DeskCode, Conflicts: conflicts}
	}
	return nil
}

func (s *BookingService) bookingEvent(eventType string, principal Principal, b scheduler.Booking, message string) events.Event {
	event := s.audit.event(eventType, principal.UserID, persistence.OutcomeSuccess, ComponentBooking, message)
	event.BookingID = b.ID
	event.DeskCode = b.DeskCode
	return event
}

// mapStoreError translates persistence failures into service errors.
func mapStoreError(op, deskCode string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrOverlap):
		return &ConflictError{DeskCode: deskCode}
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrUnknownStatus):
		return invalid(ErrConfiguration, "status", "booking status reference data is missing")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return invalid(ErrUnknownUser, "user_id", "booking references an unknown user or desk")
	case errors.Is(err, persistence.ErrStatusMismatch):
		return invalid(ErrInvalidTransition, "status", "booking status changed concurrently")
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return &StorageError{Op: op, Err: err}
}

// rejected reports whether err is a refusal worth auditing as a failed attempt.
func rejected(err error) bool {
	var vErr *ValidationError
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrForbidden) || errors.As(err, &vErr)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
