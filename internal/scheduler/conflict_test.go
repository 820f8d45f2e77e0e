package scheduler

import (
	"testing"
	"time"
)

func clock(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"contained", clock(9, 0), clock(10, 0), clock(9, 30), clock(9, 45), true},
		{"partial start", clock(9, 0), clock(10, 0), clock(8, 30), clock(9, 15), true},
		{"identical", clock(9, 0), clock(10, 0), clock(9, 0), clock(10, 0), true},
		{"adjacent after", clock(9, 0), clock(10, 0), clock(10, 0), clock(11, 0), false},
		{"adjacent before", clock(9, 0), clock(10, 0), clock(8, 0), clock(9, 0), false},
		{"disjoint", clock(9, 0), clock(10, 0), clock(12, 0), clock(13, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %s", tc.name)
			}
		})
	}
}

func TestValidInterval(t *testing.T) {
	if ValidInterval(clock(10, 0), clock(10, 0)) {
		t.Fatalf("zero-length interval must be invalid")
	}
	if ValidInterval(clock(10, 0), clock(9, 0)) {
		t.Fatalf("inverted interval must be invalid")
	}
	if !ValidInterval(clock(9, 0), clock(9, 15)) {
		t.Fatalf("forward interval must be valid")
	}
}

func TestDetectConflicts(t *testing.T) {
	existing := []Booking{
		{ID: "b1", DeskCode: "D1", Start: clock(9, 0), End: clock(10, 0), Status: StatusPending},
		{ID: "b2", DeskCode: "D1", Start: clock(11, 0), End: clock(12, 0), Status: StatusCanceled},
		{ID: "b3", DeskCode: "D2", Start: clock(9, 0), End: clock(10, 0), Status: StatusActive},
		{ID: "b4", DeskCode: "D1", Start: clock(8, 0), End: clock(9, 15), Status: StatusActive},
	}

	t.Run("overlap on same desk produces conflicts in start order", func(t *testing.T) {
		got := DetectConflicts(existing, Booking{DeskCode: "D1", Start: clock(9, 10), End: clock(9, 45)})
		if len(got) != 2 {
			t.Fatalf("expected 2 conflicts, got %#v", got)
		}
		if got[0].WithBookingID != "b4" || got[1].WithBookingID != "b1" {
			t.Fatalf("unexpected conflict order: %#v", got)
		}
	})

	t.Run("canceled bookings never conflict", func(t *testing.T) {
		if HasConflict(existing, "D1", clock(11, 0), clock(12, 0), "") {
			t.Fatalf("canceled booking must not block the desk")
		}
	})

	t.Run("adjacent booking is accepted", func(t *testing.T) {
		if HasConflict(existing, "D1", clock(10, 0), clock(11, 0), "") {
			t.Fatalf("adjacent interval must not conflict")
		}
	})

	t.Run("other desks are ignored", func(t *testing.T) {
		if HasConflict(existing, "D3", clock(9, 0), clock(10, 0), "") {
			t.Fatalf("unexpected conflict on an unbooked desk")
		}
	})

	t.Run("own booking is excluded on revalidation", func(t *testing.T) {
		if HasConflict(existing[:1], "D1", clock(9, 0), clock(10, 0), "b1") {
			t.Fatalf("booking must not conflict with itself")
		}
	})
}
