package schedule

import (
	"fmt"
	"time"
)

// Effect is how an announcement changes bookings on its date.
type Effect string

const (
	EffectNone        Effect = "none"
	EffectClosedDay   Effect = "closed_day"
	EffectCustomHours Effect = "custom_hours"
)

func (e Effect) Valid() bool {
	switch e {
	case EffectNone, EffectClosedDay, EffectCustomHours:
		return true
	}
	return false
}

// Announcement is the slice of a barber announcement that matters for booking.
type Announcement struct {
	Active        bool
	EffectiveDate time.Time
	Effect        Effect
	Custom        *Interval
	CreatedAt     time.Time
}

// Check enforces that Custom is set iff the effect is custom hours and that a date is
// set iff the effect is not none.
func (a Announcement) Check() error {
	if !a.Effect.Valid() {
		return fmt.Errorf("%w: unknown effect %q", ErrInvalidScheduleInput, a.Effect)
	}
	hasDate := !a.EffectiveDate.IsZero()
	switch {
	case a.Effect == EffectNone && hasDate:
		return fmt.Errorf("%w: effective date set without a booking effect", ErrInvalidScheduleInput)
	case a.Effect != EffectNone && !hasDate:
		return fmt.Errorf("%w: effective date required for %s", ErrInvalidScheduleInput, a.Effect)
	case a.Effect == EffectCustomHours && a.Custom == nil:
		return fmt.Errorf("%w: custom hours required", ErrInvalidScheduleInput)
	case a.Effect != EffectCustomHours && a.Custom != nil:
		return fmt.Errorf("%w: custom hours only apply to %s", ErrInvalidScheduleInput, EffectCustomHours)
	}
	if a.Custom != nil && !a.Custom.Valid() {
		return fmt.Errorf("%w: custom hours %d-%d", ErrInvalidInterval, a.Custom.Start, a.Custom.End)
	}
	return nil
}

func (a Announcement) appliesTo(target time.Time) bool {
	return a.Active && a.Effect != EffectNone && SameDate(a.EffectiveDate, target)
}

// ResolveEffectiveHours applies an announcement to the base schedule of target.
// Custom hours replace the work interval only; lunch and breaks stay with the caller
// and still apply inside the new hours.
func ResolveEffectiveHours(base DailySchedule, a *Announcement, target time.Time) DailySchedule {
	if a == nil || !a.appliesTo(target) {
		return base
	}
	switch a.Effect {
	case EffectClosedDay:
		return DailySchedule{Available: false}
	case EffectCustomHours:
		if a.Custom == nil {
			return base
		}
		work := *a.Custom
		return DailySchedule{Available: true, Work: &work}
	}
	return base
}

// PickAnnouncement returns the announcement that governs target, or nil. When several
// match, the most recently created wins.
func PickAnnouncement(list []Announcement, target time.Time) *Announcement {
	var picked *Announcement
	for i := range list {
		a := &list[i]
		if !a.appliesTo(target) {
			continue
		}
		if picked == nil || a.CreatedAt.After(picked.CreatedAt) {
			picked = a
		}
	}
	if picked == nil {
		return nil
	}
	out := *picked
	return &out
}

// SameDate compares calendar dates, ignoring clock and location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
