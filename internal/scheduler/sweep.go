package scheduler

import "time"

// DefaultNoShowGrace is how long a pending booking may go unclaimed after its start.
const DefaultNoShowGrace = 30 * time.Minute

// DefaultCheckInLead is how early before its start a booking may be checked in.
const DefaultCheckInLead = 15 * time.Minute

// SweepRule names the reconciliation rule that produced a transition.
type SweepRule string

const (
	// RuleNoShow cancels pending bookings not claimed within the grace period.
	RuleNoShow SweepRule = "no_show"
	// RuleExpired cancels pending bookings whose interval has already elapsed.
	RuleExpired SweepRule = "expired"
	// RuleCompleted completes active bookings whose interval has elapsed.
	RuleCompleted SweepRule = "completed"
)

// Transition is a status change proposed by the sweep for a single booking.
type Transition struct {
	BookingID string
	DeskCode  string
	UserID    string
	From      Status
	To        Status
	Rule      SweepRule
}

// SweepPolicy evaluates time-driven status changes.
type SweepPolicy struct {
	Grace time.Duration
}

// NewSweepPolicy returns a policy with the given grace, falling back to the default.
func NewSweepPolicy(grace time.Duration) SweepPolicy {
	if grace <= 0 {
		grace = DefaultNoShowGrace
	}
	return SweepPolicy{Grace: grace}
}

// Evaluate applies the sweep rules to b in fixed order. The no-show rule is checked
// before the expiry rule so a booking matching both is reported as a no-show.
func (p SweepPolicy) Evaluate(b Booking, now time.Time) (Transition, bool) {
	t := Transition{BookingID: b.ID, DeskCode: b.DeskCode, UserID: b.UserID, From: b.Status}
	switch b.Status {
	case StatusPending:
		if now.Sub(b.Start) > p.grace() {
			t.To, t.Rule = StatusCanceled, RuleNoShow
			return t, true
		}
		if !now.Before(b.End) {
			t.To, t.Rule = StatusCanceled, RuleExpired
			return t, true
		}
	case StatusActive:
		if !now.Before(b.End) {
			t.To, t.Rule = StatusCompleted, RuleCompleted
			return t, true
		}
	}
	return Transition{}, false
}

// Plan evaluates every booking and returns the transitions due at now.
func (p SweepPolicy) Plan(bookings []Booking, now time.Time) []Transition {
	var out []Transition
	for _, b := range bookings {
		if t, ok := p.Evaluate(b, now); ok {
			out = append(out, t)
		}
	}
	return out
}

// NoShowCutoff returns the instant a pending booking must start before to count as a
// no-show at now. Stores use it to pre-filter sweep candidates.
func (p SweepPolicy) NoShowCutoff(now time.Time) time.Time {
	return now.Add(-p.grace())
}

func (p SweepPolicy) grace() time.Duration {
	if p.Grace <= 0 {
		return DefaultNoShowGrace
	}
	return p.Grace
}

// CheckInWindow bounds when a pending booking may be claimed.
type CheckInWindow struct {
	Lead  time.Duration
	Grace time.Duration
}

// NewCheckInWindow returns a window with defaults applied to non-positive values.
func NewCheckInWindow(lead, grace time.Duration) CheckInWindow {
	if lead <= 0 {
		lead = DefaultCheckInLead
	}
	if grace <= 0 {
		grace = DefaultNoShowGrace
	}
	return CheckInWindow{Lead: lead, Grace: grace}
}

// Opens returns the first instant check-in is allowed for a booking starting at start.
func (w CheckInWindow) Opens(start time.Time) time.Time {
	return start.Add(-w.Lead)
}

// Closes returns the bound after which check-in is refused: the end of the grace
// period, or the booking's end when that comes first. The end itself is excluded.
func (w CheckInWindow) Closes(start, end time.Time) time.Time {
	closes := start.Add(w.Grace)
	if end.Before(closes) {
		return end
	}
	return closes
}

// Contains reports whether now lies within [start-Lead, start+Grace] and before end.
// A pending booking whose end has passed is left to the sweep's expiry rule.
func (w CheckInWindow) Contains(start, end, now time.Time) bool {
	return !now.Before(w.Opens(start)) && !now.After(start.Add(w.Grace)) && now.Before(end)
}
