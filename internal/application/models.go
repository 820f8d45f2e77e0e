package application

import (
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

// Principal is the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

func (p Principal) authenticated() bool {
	return p.UserID != ""
}

// may reports whether p can act on a resource owned by ownerID.
func (p Principal) may(ownerID string) bool {
	return p.IsAdmin || (p.UserID != "" && p.UserID == ownerID)
}

// Audit components recorded with every entry.
const (
	ComponentBooking    = "Booking"
	ComponentReconciler = "Reconciler"
	ComponentAuth       = "Auth"
	ComponentCatalog    = "Catalog"
)

// BookingInput captures the caller supplied booking fields. An empty UserID
// books for the principal.
type BookingInput struct {
	UserID   string
	DeskCode string
	Start    time.Time
	End      time.Time
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// BookingActionParams identifies the booking a check-in or cancel applies to.
type BookingActionParams struct {
	Principal Principal
	BookingID string
}

// ListBookingsParams narrows a booking listing. An empty UserID lists the
// principal's own bookings.
type ListBookingsParams struct {
	Principal Principal
	UserID    string
	Statuses  []scheduler.Status
}

// RegisterDeskParams wraps the data required to seed a desk.
type RegisterDeskParams struct {
	Principal Principal
	Desk      scheduler.Desk
}

// SweepResult summarizes one reconciler run.
type SweepResult struct {
	Evaluated   int
	Transitions []scheduler.Transition
	Skipped     int
	Failed      int
}

// DeskReport is the most booked desk with its location path.
type DeskReport struct {
	Desk     scheduler.Desk
	Bookings int
}

// UserReport is the most frequent booker.
type UserReport struct {
	UserID   string
	Bookings int
}

// User is an account as exposed by the service layer.
type User struct {
	ID          string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
}

// CreateUserParams wraps the data required to create an account.
type CreateUserParams struct {
	Principal   Principal
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// LoginParams carries login credentials.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult is a successful login.
type LoginResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}
