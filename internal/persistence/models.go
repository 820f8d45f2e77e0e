package persistence

import (
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

// Audit outcomes recorded in the logs table.
const (
	OutcomeSuccess = "Success"
	OutcomeFailure = "Failure"
)

// User is an account allowed to book desks.
type User struct {
	ID           string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID          int64
	UserID      string
	Outcome     string
	Component   string
	Description string
	CreatedAt   time.Time
}

// DeskFilter narrows catalog desk listings. Empty fields match everything.
type DeskFilter struct {
	Office string
	Floor  string
	Sector string
}

// BookingFilter narrows booking queries. Zero values are ignored.
type BookingFilter struct {
	UserID       string
	DeskCode     string
	Statuses     []scheduler.Status
	StartsBefore *time.Time
	EndsAfter    *time.Time
	ExcludeID    string
	Limit        int
}

// StatusChange is a compare-and-set status update applied to a single booking.
type StatusChange struct {
	BookingID string
	From      scheduler.Status
	To        scheduler.Status
	At        time.Time
}

// DeskUsage is the booking count of one desk.
type DeskUsage struct {
	Desk     scheduler.Desk
	Bookings int
}

// UserUsage is the booking count of one user.
type UserUsage struct {
	UserID   string
	Bookings int
}
