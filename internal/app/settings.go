package app

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"barbershop-service/internal/schedule"
)

// DefaultSettings is what a fresh shop starts with: Monday to Saturday 09:00-18:00,
// lunch 12:00-13:00, closed on Sunday.
func DefaultSettings(slotLength int) Settings {
	s := Settings{
		ShopName:       "Barbershop",
		SlotLengthMins: slotLength,
		MonthlyRent:    decimal.Zero,
	}
	for wd := 0; wd < 7; wd++ {
		d := DaySettings{Weekday: wd}
		if time.Weekday(wd) != time.Sunday {
			d.Available = true
			d.Start, d.End = "09:00", "18:00"
			d.LunchStart, d.LunchEnd = "12:00", "13:00"
		}
		s.Days = append(s.Days, d)
	}
	return s
}

// Day returns the settings for wd; a weekday missing from the list is closed.
func (s Settings) Day(wd time.Weekday) DaySettings {
	for _, d := range s.Days {
		if d.Weekday == int(wd) {
			return d
		}
	}
	return DaySettings{Weekday: int(wd)}
}

// DayRules is a weekday converted into the slot engine's terms.
type DayRules struct {
	Schedule schedule.DailySchedule
	Lunch    *schedule.Interval
	Breaks   []schedule.Interval
}

// Rules parses clock strings. Ordering problems (start after end) are left for
// schedule.Validate; only unparseable clocks fail here.
func (d DaySettings) Rules() (DayRules, error) {
	var r DayRules
	if !d.Available {
		return r, nil
	}
	r.Schedule.Available = true
	if d.Start != "" || d.End != "" {
		work, err := parseSpan(d.Start, d.End)
		if err != nil {
			return r, fmt.Errorf("work hours: %w", err)
		}
		r.Schedule.Work = &work
	}
	if d.LunchStart != "" || d.LunchEnd != "" {
		lunch, err := parseSpan(d.LunchStart, d.LunchEnd)
		if err != nil {
			return r, fmt.Errorf("lunch: %w", err)
		}
		r.Lunch = &lunch
	}
	for i, b := range d.Breaks {
		iv, err := parseSpan(b.Start, b.End)
		if err != nil {
			return r, fmt.Errorf("breaks[%d]: %w", i, err)
		}
		r.Breaks = append(r.Breaks, iv)
	}
	return r, nil
}

func parseSpan(start, end string) (schedule.Interval, error) {
	s, err := schedule.ParseClock(start)
	if err != nil {
		return schedule.Interval{}, err
	}
	e, err := schedule.ParseClock(end)
	if err != nil {
		return schedule.Interval{}, err
	}
	return schedule.Interval{Start: s, End: e}, nil
}

// DayIssues groups validation problems under the weekday they belong to.
type DayIssues struct {
	Weekday int              `json:"weekday"`
	Issues  []schedule.Issue `json:"issues"`
}

// ValidateSettings checks every weekday and the slot interval.
func ValidateSettings(s Settings) ([]DayIssues, error) {
	if s.SlotLengthMins <= 0 || s.SlotLengthMins > 240 {
		return nil, fmt.Errorf("%w: slot_interval_minutes must be between 1 and 240", ErrInvalidInput)
	}
	if s.MonthlyRent.IsNegative() {
		return nil, fmt.Errorf("%w: monthly_rent must not be negative", ErrInvalidInput)
	}
	seen := map[int]bool{}
	var out []DayIssues
	for _, d := range s.Days {
		if d.Weekday < 0 || d.Weekday > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidInput, d.Weekday)
		}
		if seen[d.Weekday] {
			return nil, fmt.Errorf("%w: weekday %d listed twice", ErrInvalidInput, d.Weekday)
		}
		seen[d.Weekday] = true

		r, err := d.Rules()
		if err != nil {
			return nil, fmt.Errorf("%w: weekday %d %v", ErrInvalidInput, d.Weekday, err)
		}
		if issues := schedule.Validate(r.Schedule, r.Lunch, r.Breaks); len(issues) > 0 {
			out = append(out, DayIssues{Weekday: d.Weekday, Issues: issues})
		}
	}
	return out, nil
}
