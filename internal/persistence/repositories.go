package persistence

import (
	"context"
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

// CatalogRepository exposes the seeded office/floor/sector/desk hierarchy and the
// status reference rows.
type CatalogRepository interface {
	DeskExists(ctx context.Context, code string) (bool, error)
	GetDesk(ctx context.Context, code string) (scheduler.Desk, error)
	CreateDesk(ctx context.Context, desk scheduler.Desk) (scheduler.Desk, error)
	ListOffices(ctx context.Context) ([]string, error)
	ListFloors(ctx context.Context, office string) ([]string, error)
	ListSectors(ctx context.Context, office, floor string) ([]string, error)
	ListDesks(ctx context.Context, filter DeskFilter) ([]scheduler.Desk, error)
	ResolveStatusID(ctx context.Context, status scheduler.Status) (int64, error)
}

// BookingRepository stores bookings. Implementations must re-check for overlaps
// inside the write transaction and return ErrOverlap when one exists. A non-nil
// audit entry is written in the same transaction; failing to write it must not
// abort the booking change.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking scheduler.Booking, audit *AuditEntry) error
	GetBooking(ctx context.Context, id string) (scheduler.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]scheduler.Booking, error)
	ChangeStatus(ctx context.Context, change StatusChange, audit *AuditEntry) (scheduler.Booking, error)
	ListSweepCandidates(ctx context.Context, now, noShowCutoff time.Time) ([]scheduler.Booking, error)
}

// ReportRepository computes aggregate usage. Both queries return ErrNotFound when
// there are no bookings and break ties by the lowest identifier.
type ReportRepository interface {
	MostBookedDesk(ctx context.Context) (DeskUsage, error)
	MostFrequentUser(ctx context.Context) (UserUsage, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
}

// AuditRepository stores audit log entries.
type AuditRepository interface {
	RecordAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Store is the complete persistence surface used by the service.
type Store interface {
	CatalogRepository
	BookingRepository
	ReportRepository
	UserRepository
	AuditRepository
	Ping(ctx context.Context) error
	Close() error
}
