package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrOverlap is returned when a write would leave two non-canceled bookings
	// overlapping on the same desk.
	ErrOverlap = errors.New("persistence: booking overlap")
	// ErrStatusMismatch is returned when a compare-and-set status update finds the
	// booking in a different status than expected.
	ErrStatusMismatch = errors.New("persistence: booking status changed")
	// ErrUnknownStatus is returned when a status name has no reference row.
	ErrUnknownStatus = errors.New("persistence: unknown status")
	// ErrConstraintViolation is returned when a CHECK or NOT NULL constraint fails.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced row does not exist.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrBusy is returned when the store could not obtain a lock in time.
	ErrBusy = errors.New("persistence: database busy")
)
