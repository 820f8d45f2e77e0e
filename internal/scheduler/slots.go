package scheduler

import (
	"errors"
	"time"
)

// SlotStep is the granularity of bookable start and end times.
const SlotStep = 15 * time.Minute

// ErrPastDate is returned when slots are requested for a day that has already ended.
var ErrPastDate = errors.New("scheduler: booking cannot be made for past dates")

const (
	suggestedStartHour = 8
	suggestedEndHour   = 16
)

// SlotPlan lists the start and end times offered for a single day.
type SlotPlan struct {
	Date           time.Time
	SuggestedStart time.Time
	SuggestedEnd   time.Time
	Starts         []time.Time
	Ends           []time.Time
}

// PlanSlots builds the 15-minute grid for the calendar day of date in loc. For the
// current day, slots earlier than the next grid boundary after now are dropped.
func PlanSlots(date, now time.Time, loc *time.Location) (SlotPlan, error) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	localNow := now.In(loc)
	ny, nm, nd := localNow.Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
	if day.Before(today) {
		return SlotPlan{}, ErrPastDate
	}

	plan := SlotPlan{Date: day}
	for t := at(day, 0, 15); !t.After(at(day, 23, 30)); t = t.Add(SlotStep) {
		plan.Starts = append(plan.Starts, t)
	}
	for t := at(day, 0, 30); !t.After(at(day, 23, 45)); t = t.Add(SlotStep) {
		plan.Ends = append(plan.Ends, t)
	}

	suggestedStart := at(day, suggestedStartHour, 0)
	suggestedEnd := at(day, suggestedEndHour, 0)
	if !day.Equal(today) {
		plan.SuggestedStart, plan.SuggestedEnd = suggestedStart, suggestedEnd
		return plan, nil
	}

	earliest := NextSlot(localNow)
	plan.Starts = filterTimes(plan.Starts, func(t time.Time) bool { return !t.Before(earliest) })
	plan.Ends = filterTimes(plan.Ends, func(t time.Time) bool { return t.After(earliest) })

	switch {
	case localNow.Before(suggestedStart):
		plan.SuggestedStart, plan.SuggestedEnd = suggestedStart, suggestedEnd
	case localNow.Before(suggestedEnd.Add(-SlotStep)):
		plan.SuggestedStart, plan.SuggestedEnd = earliest, suggestedEnd
	default:
		plan.SuggestedStart, plan.SuggestedEnd = earliest, earliest.Add(SlotStep)
	}
	return plan, nil
}

// NextSlot returns the first grid boundary strictly after t.
func NextSlot(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	return midnight.Add((elapsed/SlotStep + 1) * SlotStep)
}

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func filterTimes(in []time.Time, keep func(time.Time) bool) []time.Time {
	out := in[:0]
	for _, t := range in {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
