package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

var (
	userCounter    uint64
	deskCounter    uint64
	bookingCounter uint64
)

var referenceTime = time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC)

// ReferenceTime is the Monday morning all fixtures are anchored to.
func ReferenceTime() time.Time {
	return referenceTime
}

// On returns hour:minute on the reference date in UTC.
func On(hour, minute int) time.Time {
	y, m, d := referenceTime.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic account.
type UserFixture struct {
	ID           string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// UserOption configures a UserFixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a unique user such as "user-007@example.com".
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	fixture := UserFixture{
		ID:           fmt.Sprintf("user-%03d@example.com", idx),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    referenceTime.Add(-time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated id.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserAdmin sets the admin flag.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// WithUserPasswordHash overrides the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// Persistence returns the fixture as a persistence.User.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		IsAdmin:      f.IsAdmin,
		CreatedAt:    f.CreatedAt,
	}
}

// Principal returns the identity a request by this user carries.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// ----------------------------- Desk fixtures -----------------------------

// DeskOption configures a desk fixture.
type DeskOption func(*scheduler.Desk)

// NewDeskFixture returns a unique desk in the "HQ" office, floor "1", sector "A".
func NewDeskFixture(opts ...DeskOption) scheduler.Desk {
	idx := atomic.AddUint64(&deskCounter, 1)
	desk := scheduler.Desk{
		Code: fmt.Sprintf("HQ-1-A-%03d", idx),
		Location: scheduler.Location{
			Office:  "HQ",
			Floor:   "1",
			Sector:  "A",
			LocalID: int(idx),
		},
		Description: fmt.Sprintf("Desk %03d", idx),
	}
	for _, opt := range opts {
		opt(&desk)
	}
	return desk
}

// WithDeskCode overrides the desk code.
func WithDeskCode(code string) DeskOption {
	return func(d *scheduler.Desk) {
		d.Code = code
	}
}

// WithDeskLocation overrides the full location path.
func WithDeskLocation(office, floor, sector string, localID int) DeskOption {
	return func(d *scheduler.Desk) {
		d.Location = scheduler.Location{Office: office, Floor: floor, Sector: sector, LocalID: localID}
	}
}

// --------------------------- Booking fixtures ----------------------------

// BookingOption configures a booking fixture.
type BookingOption func(*scheduler.Booking)

// NewBookingFixture returns a Pending 09:00-10:00 booking on the reference date.
func NewBookingFixture(userID, deskCode string, opts ...BookingOption) scheduler.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	booking := scheduler.Booking{
		ID:        fmt.Sprintf("booking-%03d", idx),
		UserID:    userID,
		DeskCode:  deskCode,
		Start:     On(9, 0),
		End:       On(10, 0),
		Status:    scheduler.StatusPending,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookingID overrides the generated id.
func WithBookingID(id string) BookingOption {
	return func(b *scheduler.Booking) {
		b.ID = id
	}
}

// WithInterval sets the booked interval.
func WithInterval(start, end time.Time) BookingOption {
	return func(b *scheduler.Booking) {
		b.Start = start
		b.End = end
	}
}

// WithStatus sets the initial status.
func WithStatus(status scheduler.Status) BookingOption {
	return func(b *scheduler.Booking) {
		b.Status = status
	}
}
