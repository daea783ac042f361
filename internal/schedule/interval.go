package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound for an interval end.
const MinutesPerDay = 24 * 60

var (
	ErrInvalidInterval      = errors.New("invalid interval")
	ErrInvalidScheduleInput = errors.New("invalid schedule input")
)

// Interval is a half-open range [Start, End) in minutes since midnight.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func NewInterval(start, end int) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("%w: %d-%d", ErrInvalidInterval, start, end)
	}
	return iv, nil
}

// ParseInterval builds an interval from two "HH:MM" strings.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

func (a Interval) Valid() bool {
	return a.Start >= 0 && a.End <= MinutesPerDay && a.Start < a.End
}

func (a Interval) Duration() int { return a.End - a.Start }

// Overlaps reports whether a and b share at least one minute. Touching intervals do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func (a Interval) Contains(inner Interval) bool {
	return a.Start <= inner.Start && inner.End <= a.End
}

// Subtract returns what remains of a once cut is removed, in ascending order.
func (a Interval) Subtract(cut Interval) []Interval {
	if !a.Overlaps(cut) {
		return []Interval{a}
	}
	var out []Interval
	if cut.Start > a.Start {
		out = append(out, Interval{Start: a.Start, End: cut.Start})
	}
	if cut.End < a.End {
		out = append(out, Interval{Start: cut.End, End: a.End})
	}
	return out
}

func (a Interval) String() string {
	return FormatClock(a.Start) + "-" + FormatClock(a.End)
}

// ParseClock converts "HH:MM" (optionally followed by seconds, as Postgres renders TIME)
// into minutes since midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) > 5 && s[5] == ':' {
		s = s[:5]
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: bad clock %q", ErrInvalidInterval, s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock %q", ErrInvalidInterval, s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock %q", ErrInvalidInterval, s)
	}
	if hh < 0 || mm < 0 || mm > 59 || hh > 24 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("%w: bad clock %q", ErrInvalidInterval, s)
	}
	return hh*60 + mm, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
