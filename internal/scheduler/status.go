package scheduler

import "fmt"

// Status is the lifecycle state of a booking.
type Status string

const (
	// StatusPending marks a booking that has been created but not checked in.
	StatusPending Status = "Pending"
	// StatusActive marks a booking whose owner has checked in.
	StatusActive Status = "Active"
	// StatusCanceled marks a booking canceled by its owner or by the reconciler.
	StatusCanceled Status = "Canceled"
	// StatusCompleted marks an active booking whose interval has elapsed.
	StatusCompleted Status = "Completed"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusCanceled},
	StatusActive:    {StatusCanceled, StatusCompleted},
	StatusCanceled:  {},
	StatusCompleted: {},
}

// AllStatuses lists every status in seed order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusActive, StatusCanceled, StatusCompleted}
}

// ParseStatus converts a stored status name into a Status.
func ParseStatus(name string) (Status, error) {
	s := Status(name)
	if !s.IsValid() {
		return "", fmt.Errorf("scheduler: unknown status %q", name)
	}
	return s, nil
}

// IsValid reports whether the status belongs to the enumeration.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled || s == StatusCompleted
}

// OccupiesDesk reports whether a booking in this status blocks its interval.
func (s Status) OccupiesDesk() bool {
	return s.IsValid() && s != StatusCanceled
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
