package scheduler

import (
	"sort"
	"time"
)

// Location is the composite path that places a desk inside the building hierarchy.
type Location struct {
	Office  string
	Floor   string
	Sector  string
	LocalID int
}

// Desk is a bookable physical resource.
type Desk struct {
	ID          int64
	Code        string
	Location    Location
	Description string
}

// Booking reserves one desk for one user over the half-open interval [Start, End).
type Booking struct {
	ID        string
	UserID    string
	DeskCode  string
	Start     time.Time
	End       time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Conflict details an existing booking that overlaps a candidate interval.
type Conflict struct {
	WithBookingID string
	DeskCode      string
	Start         time.Time
	End           time.Time
	Status        Status
}

// ValidInterval reports whether end is strictly after start.
func ValidInterval(start, end time.Time) bool {
	return end.After(start)
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Adjacent intervals do not.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// DetectConflicts returns the bookings in existing that would collide with candidate.
// Bookings on other desks, canceled bookings, and the candidate itself are ignored.
func DetectConflicts(existing []Booking, candidate Booking) []Conflict {
	var conflicts []Conflict
	for _, b := range existing {
		if b.DeskCode != candidate.DeskCode {
			continue
		}
		if candidate.ID != "" && b.ID == candidate.ID {
			continue
		}
		if !b.Status.OccupiesDesk() {
			continue
		}
		if !Overlaps(b.Start, b.End, candidate.Start, candidate.End) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithBookingID: b.ID,
			DeskCode:      b.DeskCode,
			Start:         b.Start,
			End:           b.End,
			Status:        b.Status,
		})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Start.Equal(conflicts[j].Start) {
			return conflicts[i].WithBookingID < conflicts[j].WithBookingID
		}
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts
}

// HasConflict is the boolean form of DetectConflicts.
func HasConflict(existing []Booking, deskCode string, start, end time.Time, excludeID string) bool {
	return len(DetectConflicts(existing, Booking{ID: excludeID, DeskCode: deskCode, Start: start, End: end})) > 0
}
