package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/desk-booking/internal/persistence"
)

const (
	reportMostBookedDesk   = "most_booked_desk"
	reportMostFrequentUser = "most_frequent_user"
)

// ReportInvalidator drops cached report results once the underlying counts change.
type ReportInvalidator interface {
	Invalidate()
}

var _ ReportInvalidator = (*ReportService)(nil)

// ReportService computes aggregate usage for administrators.
type ReportService struct {
	reports persistence.ReportRepository
	cache   *reportCache
	logger  *slog.Logger
}

// NewReportService constructs a ReportService. Results are cached for ttl,
// DefaultReportTTL when ttl is not positive. Pass the service as
// BookingServiceDeps.Reports so new bookings clear the cache; otherwise counts
// may lag by up to ttl.
func NewReportService(reports persistence.ReportRepository, ttl time.Duration, now func() time.Time) *ReportService {
	return NewReportServiceWithLogger(reports, ttl, now, nil)
}

// NewReportServiceWithLogger constructs a ReportService with a specific logger.
func NewReportServiceWithLogger(reports persistence.ReportRepository, ttl time.Duration, now func() time.Time, logger *slog.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		cache:   newReportCache(ttl, now),
		logger:  defaultLogger(logger),
	}
}

// MostBookedDesk returns the desk with the most bookings in any status. ok is
// false when there are no bookings or the store failed; the error is reserved
// for access violations.
func (s *ReportService) MostBookedDesk(ctx context.Context, principal Principal) (DeskReport, bool, error) {
	if err := s.authorize(principal); err != nil {
		return DeskReport{}, false, err
	}
	if value, ok, hit := s.cache.get(reportMostBookedDesk); hit {
		report, _ := value.(DeskReport)
		return report, ok, nil
	}

	usage, err := s.reports.MostBookedDesk(ctx)
	if !s.settle(ctx, "MostBookedDesk", err) {
		if errors.Is(err, persistence.ErrNotFound) {
			s.cache.store(reportMostBookedDesk, DeskReport{}, false)
		}
		return DeskReport{}, false, nil
	}
	report := DeskReport{Desk: usage.Desk, Bookings: usage.Bookings}
	s.cache.store(reportMostBookedDesk, report, true)
	return report, true, nil
}

// MostFrequentUser returns the user with the most bookings. It degrades the
// same way as MostBookedDesk.
func (s *ReportService) MostFrequentUser(ctx context.Context, principal Principal) (UserReport, bool, error) {
	if err := s.authorize(principal); err != nil {
		return UserReport{}, false, err
	}
	if value, ok, hit := s.cache.get(reportMostFrequentUser); hit {
		report, _ := value.(UserReport)
		return report, ok, nil
	}

	usage, err := s.reports.MostFrequentUser(ctx)
	if !s.settle(ctx, "MostFrequentUser", err) {
		if errors.Is(err, persistence.ErrNotFound) {
			s.cache.store(reportMostFrequentUser, UserReport{}, false)
		}
		return UserReport{}, false, nil
	}
	report := UserReport{UserID: usage.UserID, Bookings: usage.Bookings}
	s.cache.store(reportMostFrequentUser, report, true)
	return report, true, nil
}

// Invalidate forgets cached reports, typically after bookings were added.
func (s *ReportService) Invalidate() {
	if s != nil {
		s.cache.invalidate()
	}
}

func (s *ReportService) authorize(principal Principal) error {
	if !principal.authenticated() {
		return ErrUnauthorized
	}
	if !principal.IsAdmin {
		return ErrForbidden
	}
	return nil
}

// settle logs a report failure and reports whether a result is available.
func (s *ReportService) settle(ctx context.Context, operation string, err error) bool {
	logger := serviceLogger(ctx, s.logger, "ReportService", operation)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "report computed")
		return true
	case errors.Is(err, persistence.ErrNotFound):
		logger.InfoContext(ctx, "report has no data")
	default:
		wrapped := &StorageError{Op: operation, Err: err}
		logger.ErrorContext(ctx, "report failed", "error", wrapped, "error_kind", ErrorKind(wrapped))
	}
	return false
}
