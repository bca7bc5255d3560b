// Package medication models a pill pack: packDays active days followed
// by a fixed seven-day break. The cycle is anchored on the earliest
// recorded medication event.
package medication

import (
	"github.com/shopspring/decimal"

	"cyclecal/internal/model"
)

const (
	// BreakDays is the length of the pill-free week after each pack.
	BreakDays = 7

	// DefaultHorizonDays is how far past today virtual entries reach.
	DefaultHorizonDays = 90

	// DefaultComplianceWindow is the trailing window for ComplianceRate.
	DefaultComplianceWindow = 30
)

// Status tags a virtual schedule entry relative to today.
type Status string

const (
	StatusScheduledPast   Status = "scheduled-past"
	StatusScheduledFuture Status = "scheduled-future"
)

// ScheduleEntry is a pack day with no recorded event.
type ScheduleEntry struct {
	Date    model.Date
	PackDay int
	Status  Status
}

// FullCycleDays returns the pack length plus the break week.
func FullCycleDays(packDays int) int {
	return packDays + BreakDays
}

// Anchor returns the earliest recorded event date, the cycle's day 0.
func Anchor(events map[model.Date]model.MedicationEvent) (model.Date, bool) {
	var anchor model.Date
	found := false
	for day := range events {
		if !found || day.Before(anchor) {
			anchor = day
			found = true
		}
	}
	return anchor, found
}

// DayInCycle returns the 1-based position of date in the pack cycle
// anchored at anchor. Days 1..packDays are active, the rest are break.
func DayInCycle(anchor, date model.Date, packDays int) int {
	full := FullCycleDays(packDays)
	offset := anchor.DaysUntil(date) % full
	if offset < 0 {
		offset += full
	}
	return offset + 1
}

// InBreakWeek reports whether date falls in a pill-free week.
func InBreakWeek(anchor, date model.Date, packDays int) bool {
	return DayInCycle(anchor, date, packDays) > packDays
}

// VirtualScheduleEntries returns one entry per active pack day from the
// day after the anchor through today+horizonDays that has no recorded
// event. Days before today are scheduled-past, today onwards
// scheduled-future. Without any recorded event there is no schedule.
func VirtualScheduleEntries(events map[model.Date]model.MedicationEvent, settings model.Settings, today model.Date, horizonDays int) []ScheduleEntry {
	anchor, ok := Anchor(events)
	if !ok {
		return nil
	}
	if horizonDays < 0 {
		horizonDays = 0
	}
	last := today.AddDays(horizonDays)

	var out []ScheduleEntry
	for day := anchor.AddDays(1); !day.After(last); day = day.AddDays(1) {
		if _, recorded := events[day]; recorded {
			continue
		}
		packDay := DayInCycle(anchor, day, settings.PackDays)
		if packDay > settings.PackDays {
			continue
		}
		status := StatusScheduledFuture
		if day.Before(today) {
			status = StatusScheduledPast
		}
		out = append(out, ScheduleEntry{Date: day, PackDay: packDay, Status: status})
	}
	return out
}

// Streak counts consecutive days with a taken record, walking back from
// today (from yesterday when today has no taken record yet) to the first
// tracked day. Break-week days are stepped over. Any other day without
// a taken record between today and the first tracked day resets the
// streak to 0.
func Streak(events map[model.Date]model.MedicationEvent, settings model.Settings, today model.Date) int {
	anchor, ok := Anchor(events)
	if !ok {
		return 0
	}
	taken := func(day model.Date) bool {
		ev, ok := events[day]
		return ok && ev.Taken
	}

	day := today
	if !taken(day) {
		day = day.AddDays(-1)
	}

	count := 0
	for ; !day.Before(anchor); day = day.AddDays(-1) {
		switch {
		case taken(day):
			count++
		case InBreakWeek(anchor, day, settings.PackDays):
			continue
		default:
			return 0
		}
	}
	return count
}

// ComplianceRate returns taken/recorded over [today-windowDays+1, today]
// as a whole-number percentage. With nothing recorded in the window the
// rate is 100.
func ComplianceRate(events map[model.Date]model.MedicationEvent, today model.Date, windowDays int) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	if windowDays <= 0 {
		return hundred
	}
	from := today.AddDays(-(windowDays - 1))

	var taken, total int64
	for day, ev := range events {
		if day.Before(from) || day.After(today) {
			continue
		}
		total++
		if ev.Taken {
			taken++
		}
	}
	if total == 0 {
		return hundred
	}
	return decimal.NewFromInt(taken).Mul(hundred).Div(decimal.NewFromInt(total)).Round(0)
}
