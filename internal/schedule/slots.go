package schedule

import (
	"fmt"
	"sort"
	"time"
)

// DefaultStep is the candidate granularity in minutes when a query leaves Step at zero.
const DefaultStep = 15

// Booked is an existing appointment as seen by the slot generator.
type Booked struct {
	Date     time.Time
	Start    int
	Duration int
}

func (b Booked) span() Interval {
	return Interval{Start: b.Start, End: b.Start + b.Duration}
}

type TimeSlot struct {
	Start     int  `json:"start"`
	Available bool `json:"available"`
}

// Query carries everything needed to compute the bookable starts of one date.
// Schedule is the effective schedule, after any announcement was resolved.
type Query struct {
	Date         time.Time
	Duration     int
	Schedule     DailySchedule
	Lunch        *Interval
	Breaks       []Interval
	Appointments []Booked
	Step         int
	Now          time.Time

	// IncludeUnavailable also emits rejected candidates with Available=false.
	// Candidates in the past are never emitted.
	IncludeUnavailable bool
}

func (q Query) check() error {
	if q.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidScheduleInput, q.Duration)
	}
	if q.Step < 0 {
		return fmt.Errorf("%w: step must not be negative, got %d", ErrInvalidScheduleInput, q.Step)
	}
	if q.Schedule.Available && (q.Schedule.Work == nil || !q.Schedule.Work.Valid()) {
		return fmt.Errorf("%w: available day without valid work hours", ErrInvalidScheduleInput)
	}
	return nil
}

// GenerateSlots walks the work interval in Step increments and returns the starts at which
// a service of Duration fits: inside work hours, clear of lunch, breaks and booked
// appointments, and not in the past. The result is ascending and has no duplicate starts.
func GenerateSlots(q Query) ([]TimeSlot, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	if !q.Schedule.Available {
		return []TimeSlot{}, nil
	}

	step := q.Step
	if step == 0 {
		step = DefaultStep
	}

	// minutes before this bound are in the past
	pastBefore := 0
	switch compareDates(q.Date, q.Now) {
	case -1:
		return []TimeSlot{}, nil
	case 0:
		pastBefore = q.Now.Hour()*60 + q.Now.Minute()
		if q.Now.Second() > 0 || q.Now.Nanosecond() > 0 {
			pastBefore++
		}
	}

	blocked := make([]Interval, 0, len(q.Breaks)+len(q.Appointments)+1)
	if q.Lunch != nil {
		blocked = append(blocked, *q.Lunch)
	}
	blocked = append(blocked, q.Breaks...)
	for _, b := range q.Appointments {
		if b.Duration > 0 && SameDate(b.Date, q.Date) {
			blocked = append(blocked, b.span())
		}
	}

	work := *q.Schedule.Work
	seen := make(map[int]struct{})
	out := make([]TimeSlot, 0)
	for t := work.Start; t < work.End; t += step {
		if t < pastBefore {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}

		span := Interval{Start: t, End: t + q.Duration}
		ok := work.Contains(span) && !overlapsAny(span, blocked)
		if ok || q.IncludeUnavailable {
			out = append(out, TimeSlot{Start: t, Available: ok})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func overlapsAny(span Interval, blocked []Interval) bool {
	for _, b := range blocked {
		if span.Overlaps(b) {
			return true
		}
	}
	return false
}

// compareDates orders the calendar dates of a and b, each read in its own location.
func compareDates(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ka := ay*10000 + int(am)*100 + ad
	kb := by*10000 + int(bm)*100 + bd
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}
