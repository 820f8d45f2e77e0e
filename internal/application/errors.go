package application

import (
	"errors"
	"fmt"

	"github.com/example/desk-booking/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when no authenticated principal is present.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrForbidden is returned when the principal may not act on the resource.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is the sentinel every ConflictError matches.
	ErrConflict = errors.New("application: booking conflict")
	// ErrAlreadyExists is returned when a unique resource is created twice.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login or token checks fail.
	ErrInvalidCredentials = errors.New("application: invalid credentials")

	// Causes carried by ValidationError.
	ErrInvalidInterval   = errors.New("end must be after start")
	ErrStartInPast       = errors.New("start is in the past")
	ErrUnknownDesk       = errors.New("desk does not exist")
	ErrUnknownUser       = errors.New("user does not exist")
	ErrConfiguration     = errors.New("booking status reference data is missing")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrCheckInWindow     = errors.New("outside the check-in window")
)

// ValidationError captures field level problems that callers surface to users.
// Cause, when set, is one of the validation sentinels above.
type ValidationError struct {
	FieldErrors map[string]string
	Cause       error
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Cause != nil {
		return "validation failed: " + v.Cause.Error()
	}
	return "validation failed"
}

// Unwrap exposes the cause to errors.Is.
func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.Cause
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && (len(v.FieldErrors) > 0 || v.Cause != nil)
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func invalid(cause error, field, message string) *ValidationError {
	v := &ValidationError{Cause: cause}
	v.add(field, message)
	return v
}

// ConflictError reports that the desk is already held for part of the interval.
type ConflictError struct {
	DeskCode  string
	Conflicts []scheduler.Conflict
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if len(c.Conflicts) == 0 {
		return fmt.Sprintf("desk %s is already booked for the requested time", c.DeskCode)
	}
	return fmt.Sprintf("desk %s is already booked for the requested time (%d conflicting bookings)", c.DeskCode, len(c.Conflicts))
}

// Unwrap makes errors.Is(err, ErrConflict) hold.
func (c *ConflictError) Unwrap() error {
	return ErrConflict
}

// StorageError wraps a transport or transaction failure.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (s *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", s.Op, s.Err)
}

// Unwrap returns the underlying failure.
func (s *StorageError) Unwrap() error {
	return s.Err
}
