package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"barbershop-service/internal/schedule"
)

// SlotRequest identifies one availability lookup.
type SlotRequest struct {
	Date               time.Time
	Duration           int
	IncludeUnavailable bool
	// Fresh skips the cached list; bookings use it so calendar changes are always seen.
	Fresh bool
}

// DayPlan is everything that shapes the slots of one date, already resolved.
type DayPlan struct {
	Rules        DayRules
	Effective    schedule.DailySchedule
	Announcement *schedule.Announcement
	Booked       []schedule.Booked
	Step         int
}

// AvailableSlots loads settings, announcements, appointments and calendar busy time for
// req.Date and runs the slot generator on them. Lists for future dates are cached; today's
// list depends on the clock and is always computed.
func (a *App) AvailableSlots(ctx context.Context, req SlotRequest) ([]schedule.TimeSlot, error) {
	now := a.Now()
	date := req.Date.Format(dateLayout)
	cacheable := date > now.Format(dateLayout)
	key := slotCacheKey(date, req.Duration, req.IncludeUnavailable)
	if cacheable && !req.Fresh {
		if slots, ok := a.cache().Get(ctx, key); ok {
			return slots, nil
		}
	}

	plan, err := a.PlanDay(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	slots, err := schedule.GenerateSlots(schedule.Query{
		Date:               req.Date,
		Duration:           req.Duration,
		Schedule:           plan.Effective,
		Lunch:              plan.Rules.Lunch,
		Breaks:             plan.Rules.Breaks,
		Appointments:       plan.Booked,
		Step:               plan.Step,
		Now:                now,
		IncludeUnavailable: req.IncludeUnavailable,
	})
	if err != nil {
		return nil, err
	}
	if cacheable {
		a.cache().Set(ctx, key, slots)
	}
	return slots, nil
}

// PlanDay gathers the inputs of the slot generator for date.
func (a *App) PlanDay(ctx context.Context, date time.Time) (DayPlan, error) {
	var plan DayPlan

	settings, err := a.Store.GetSettings(ctx)
	if err != nil {
		return plan, fmt.Errorf("load settings: %w", err)
	}
	plan.Step = settings.SlotLengthMins
	plan.Rules, err = settings.Day(date.Weekday()).Rules()
	if err != nil {
		return plan, fmt.Errorf("%w: stored settings: %v", schedule.ErrInvalidScheduleInput, err)
	}

	anns, err := a.Store.ListAnnouncements(ctx, true)
	if err != nil {
		return plan, fmt.Errorf("load announcements: %w", err)
	}
	core := make([]schedule.Announcement, 0, len(anns))
	for _, an := range anns {
		c, err := an.toSchedule(a.loc())
		if err != nil {
			a.logger().Warn("skipping malformed announcement", zap.String("id", an.ID), zap.Error(err))
			continue
		}
		core = append(core, c)
	}
	plan.Announcement = schedule.PickAnnouncement(core, date)
	plan.Effective = schedule.ResolveEffectiveHours(plan.Rules.Schedule, plan.Announcement, date)

	appts, err := a.Store.ListAppointments(ctx, date.Format(dateLayout))
	if err != nil {
		return plan, fmt.Errorf("load appointments: %w", err)
	}
	for _, ap := range appts {
		if !ap.Status.Occupies() {
			continue
		}
		plan.Booked = append(plan.Booked, schedule.Booked{Date: date, Start: ap.StartMins, Duration: ap.DurationMins})
	}

	if a.Calendar != nil && plan.Effective.Available {
		busy, err := a.Calendar.Busy(ctx, date)
		if err != nil {
			// bookings still work from local data when the calendar is unreachable
			a.logger().Warn("calendar busy lookup failed", zap.String("date", date.Format(dateLayout)), zap.Error(err))
		} else {
			plan.Booked = append(plan.Booked, busy...)
		}
	}
	return plan, nil
}
