package medication

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclecal/internal/model"
)

func d(s string) model.Date { return model.MustParseDate(s) }

func settingsWithPack(packDays int) model.Settings {
	s := model.DefaultSettings()
	s.PackDays = packDays
	return s
}

// takenRange records a taken event for every day in [from, to].
func takenRange(from, to string) map[model.Date]model.MedicationEvent {
	out := map[model.Date]model.MedicationEvent{}
	for day := d(from); !day.After(d(to)); day = day.AddDays(1) {
		out[day] = model.MedicationEvent{ID: day.String(), Date: day, Taken: true, Time: "08:00"}
	}
	return out
}

func TestDayInCycle(t *testing.T) {
	anchor := d("2024-03-01")
	tests := []struct {
		date string
		want int
	}{
		{"2024-03-01", 1},
		{"2024-03-21", 21},
		{"2024-03-22", 22}, // first break day with packDays=21
		{"2024-03-28", 28},
		{"2024-03-29", 1}, // next pack
		{"2024-02-29", 28}, // before the anchor wraps backwards
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DayInCycle(anchor, d(tt.date), 21), tt.date)
	}
	assert.True(t, InBreakWeek(anchor, d("2024-03-25"), 21))
	assert.False(t, InBreakWeek(anchor, d("2024-03-21"), 21))
}

func TestVirtualScheduleEntriesNoAnchor(t *testing.T) {
	assert.Nil(t, VirtualScheduleEntries(nil, settingsWithPack(21), d("2024-03-10"), 90))
}

func TestVirtualScheduleEntries(t *testing.T) {
	events := map[model.Date]model.MedicationEvent{
		d("2024-03-01"): {ID: "a", Date: d("2024-03-01"), Taken: true, Time: "08:00"},
		d("2024-03-03"): {ID: "b", Date: d("2024-03-03"), Taken: false},
	}
	today := d("2024-03-05")

	entries := VirtualScheduleEntries(events, settingsWithPack(21), today, 30)

	byDate := map[string]ScheduleEntry{}
	for _, e := range entries {
		byDate[e.Date.String()] = e
	}

	assert.NotContains(t, byDate, "2024-03-01", "anchor day itself is recorded")
	assert.NotContains(t, byDate, "2024-03-03", "recorded day suppresses the virtual entry")

	require.Contains(t, byDate, "2024-03-02")
	assert.Equal(t, StatusScheduledPast, byDate["2024-03-02"].Status)
	assert.Equal(t, 2, byDate["2024-03-02"].PackDay)

	require.Contains(t, byDate, "2024-03-05")
	assert.Equal(t, StatusScheduledFuture, byDate["2024-03-05"].Status, "today counts as future")

	// Break week 03-22..03-28 is skipped; the next pack starts 03-29.
	for day := d("2024-03-22"); !day.After(d("2024-03-28")); day = day.AddDays(1) {
		assert.NotContains(t, byDate, day.String())
	}
	require.Contains(t, byDate, "2024-03-29")
	assert.Equal(t, 1, byDate["2024-03-29"].PackDay)

	// Horizon is today+30 = 04-04.
	assert.Contains(t, byDate, "2024-04-04")
	assert.NotContains(t, byDate, "2024-04-05")

	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Date.Before(entries[i].Date), "entries are in date order")
	}
}

func TestStreak(t *testing.T) {
	s := settingsWithPack(21)
	today := d("2024-03-10")

	events := takenRange("2024-03-01", "2024-03-10")
	assert.Equal(t, 10, Streak(events, s, today))

	// A gap outside the break week between today and the first tracked
	// day breaks the chain completely.
	delete(events, d("2024-03-05"))
	assert.Equal(t, 0, Streak(events, s, today))
}

func TestStreakTodayNotYetTaken(t *testing.T) {
	events := takenRange("2024-03-01", "2024-03-09")
	assert.Equal(t, 9, Streak(events, settingsWithPack(21), d("2024-03-10")))
}

func TestStreakSkipsBreakWeek(t *testing.T) {
	// Pack of 21 from 03-01 (03-01..03-21), break 03-22..03-28, new pack from 03-29.
	events := takenRange("2024-03-01", "2024-03-21")
	for k, v := range takenRange("2024-03-29", "2024-04-02") {
		events[k] = v
	}
	assert.Equal(t, 26, Streak(events, settingsWithPack(21), d("2024-04-02")))
}

func TestStreakEmptyAndAllMissed(t *testing.T) {
	s := settingsWithPack(21)
	assert.Equal(t, 0, Streak(nil, s, d("2024-03-10")))

	missed := map[model.Date]model.MedicationEvent{}
	for day := d("2024-03-01"); !day.After(d("2024-03-10")); day = day.AddDays(1) {
		missed[day] = model.MedicationEvent{Date: day, Taken: false}
	}
	assert.Equal(t, 0, Streak(missed, s, d("2024-03-10")))
}

func TestComplianceRate(t *testing.T) {
	today := d("2024-03-10")
	assert.True(t, decimal.NewFromInt(100).Equal(ComplianceRate(nil, today, 30)), "vacuously compliant")

	events := takenRange("2024-03-01", "2024-03-10")
	events[d("2024-03-04")] = model.MedicationEvent{Date: d("2024-03-04"), Taken: false}
	events[d("2024-03-07")] = model.MedicationEvent{Date: d("2024-03-07"), Taken: false}
	events[d("2024-03-08")] = model.MedicationEvent{Date: d("2024-03-08"), Taken: false}
	// 7 of 10 taken.
	assert.Equal(t, "70", ComplianceRate(events, today, 30).String())

	// Window of 3 days: 03-08 missed, 03-09 and 03-10 taken -> 66.67 -> 67.
	assert.Equal(t, "67", ComplianceRate(events, today, 3).String())

	// Events outside the window do not count.
	old := map[model.Date]model.MedicationEvent{
		d("2024-01-01"): {Date: d("2024-01-01"), Taken: false},
	}
	assert.Equal(t, "100", ComplianceRate(old, today, 30).String())
}
