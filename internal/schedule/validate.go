package schedule

import "fmt"

// DailySchedule describes whether the shop opens on a day and for which hours.
// Work is set iff Available is true.
type DailySchedule struct {
	Available bool      `json:"available"`
	Work      *Interval `json:"work,omitempty"`
}

type IssueKind string

const (
	IssueMissingWorkHours      IssueKind = "missing_work_hours"
	IssueLunchOutsideWorkHours IssueKind = "lunch_outside_work_hours"
	IssueBreakOutsideWorkHours IssueKind = "break_outside_work_hours"
	IssueOverlappingBreaks     IssueKind = "overlapping_breaks"
	IssueInvalidInterval       IssueKind = "invalid_interval"
)

// NoIndex marks an issue that does not point at a breaks entry (work hours or lunch).
const NoIndex = -1

// Issue is a single validation problem. Index and Other refer to the breaks slice;
// NoIndex stands for the lunch interval or for no entry at all.
type Issue struct {
	Kind  IssueKind `json:"kind"`
	Field string    `json:"field"`
	Index int       `json:"index"`
	Other int       `json:"other"`
}

func (i Issue) Error() string {
	if i.Kind == IssueOverlappingBreaks {
		return fmt.Sprintf("%s: %s overlaps %s", i.Kind, i.Field, fieldName(i.Other))
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Field)
}

func fieldName(index int) string {
	if index == NoIndex {
		return "lunch"
	}
	return fmt.Sprintf("breaks[%d]", index)
}

type rule func(day DailySchedule, lunch *Interval, breaks []Interval) []Issue

// rules run in order; every rule sees the same input and all issues are reported.
var rules = []rule{
	checkEntries,
	checkLunchInside,
	checkBreaksInside,
	checkOverlaps,
}

// Validate checks a day's settings and returns every problem found. An empty result means valid.
func Validate(day DailySchedule, lunch *Interval, breaks []Interval) []Issue {
	if !day.Available {
		return nil
	}
	if day.Work == nil || !day.Work.Valid() {
		issues := []Issue{{Kind: IssueMissingWorkHours, Field: "work_hours", Index: NoIndex, Other: NoIndex}}
		// containment cannot be judged without hours, overlaps still can
		issues = append(issues, checkEntries(day, lunch, breaks)...)
		return append(issues, checkOverlaps(day, lunch, breaks)...)
	}
	var issues []Issue
	for _, r := range rules {
		issues = append(issues, r(day, lunch, breaks)...)
	}
	return issues
}

func checkEntries(_ DailySchedule, lunch *Interval, breaks []Interval) []Issue {
	var issues []Issue
	if lunch != nil && !lunch.Valid() {
		issues = append(issues, Issue{Kind: IssueInvalidInterval, Field: "lunch", Index: NoIndex, Other: NoIndex})
	}
	for i, b := range breaks {
		if !b.Valid() {
			issues = append(issues, Issue{Kind: IssueInvalidInterval, Field: fieldName(i), Index: i, Other: NoIndex})
		}
	}
	return issues
}

func checkLunchInside(day DailySchedule, lunch *Interval, _ []Interval) []Issue {
	if lunch == nil || !lunch.Valid() || day.Work.Contains(*lunch) {
		return nil
	}
	return []Issue{{Kind: IssueLunchOutsideWorkHours, Field: "lunch", Index: NoIndex, Other: NoIndex}}
}

func checkBreaksInside(day DailySchedule, _ *Interval, breaks []Interval) []Issue {
	var issues []Issue
	for i, b := range breaks {
		if b.Valid() && !day.Work.Contains(b) {
			issues = append(issues, Issue{Kind: IssueBreakOutsideWorkHours, Field: fieldName(i), Index: i, Other: NoIndex})
		}
	}
	return issues
}

func checkOverlaps(_ DailySchedule, lunch *Interval, breaks []Interval) []Issue {
	type entry struct {
		idx int
		iv  Interval
	}
	var all []entry
	if lunch != nil && lunch.Valid() {
		all = append(all, entry{idx: NoIndex, iv: *lunch})
	}
	for i, b := range breaks {
		if b.Valid() {
			all = append(all, entry{idx: i, iv: b})
		}
	}
	var issues []Issue
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i].iv.Overlaps(all[j].iv) {
				// the later entry is the offender; lunch always comes first
				issues = append(issues, Issue{
					Kind:  IssueOverlappingBreaks,
					Field: fieldName(all[j].idx),
					Index: all[j].idx,
					Other: all[i].idx,
				})
			}
		}
	}
	return issues
}
