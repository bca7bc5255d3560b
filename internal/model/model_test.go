package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-01-29")

	assert.Equal(t, "2024-02-26", d.AddDays(28).String())
	assert.Equal(t, 28, DaysBetween(MustParseDate("2024-01-01"), d))
	assert.Equal(t, -28, d.DaysUntil(MustParseDate("2024-01-01")))
	assert.Equal(t, "2024-02-29", NewDate(2024, time.February, 10).EndOfMonth().String())
	assert.Equal(t, "2024-02-01", NewDate(2024, time.February, 10).StartOfMonth().String())
}

func TestDateAcrossDST(t *testing.T) {
	// Day arithmetic is done on UTC midnights, so a DST switch in the
	// caller's zone cannot skip or repeat a day.
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	start := DateOf(time.Date(2024, time.March, 30, 23, 30, 0, 0, loc))
	assert.Equal(t, "2024-03-30", start.String())
	assert.Equal(t, "2024-03-31", start.AddDays(1).String())
	assert.Equal(t, 2, start.DaysUntil(MustParseDate("2024-04-01")))
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "2024-13-01", "01/02/2024", "2024-02-30"} {
		_, err := ParseDate(in)
		assert.Error(t, err, in)
	}
}

func TestDateAsMapKeyRoundTrip(t *testing.T) {
	in := map[Date]string{
		MustParseDate("2024-03-02"): "b",
		MustParseDate("2024-03-01"): "a",
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-03-01":"a","2024-03-02":"b"}`, string(b))

	var out map[Date]string
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestClockTime(t *testing.T) {
	c, err := ParseClockTime("8:05")
	require.NoError(t, err)
	assert.Equal(t, ClockTime("08:05"), c)
	assert.Equal(t, 8, c.Hour())
	assert.Equal(t, 5, c.Minute())

	_, err = ParseClockTime("25:00")
	assert.Error(t, err)
	assert.False(t, ClockTime("nope").Valid())
}

func TestNormalizeSymptoms(t *testing.T) {
	got := NormalizeSymptoms([]string{"cramps", " ", "headache", "cramps", "bloating"})
	assert.Equal(t, []string{"bloating", "cramps", "headache"}, got)
	assert.Empty(t, NormalizeSymptoms(nil))
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	tests := []struct {
		name  string
		mut   func(*Settings)
		field string
	}{
		{"cycle too short", func(s *Settings) { s.CycleLength = 20 }, "cycleLength"},
		{"cycle too long", func(s *Settings) { s.CycleLength = 41 }, "cycleLength"},
		{"period zero", func(s *Settings) { s.PeriodLength = 0 }, "periodLength"},
		{"period not shorter than cycle", func(s *Settings) { s.CycleLength = 21; s.PeriodLength = 21 }, "periodLength"},
		{"pack too short", func(s *Settings) { s.PackDays = 13 }, "packDays"},
		{"pack too long", func(s *Settings) { s.PackDays = 29 }, "packDays"},
		{"bad reminder", func(s *Settings) { s.ReminderTime = "7pm" }, "reminderTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mut(&s)
			err := s.Validate()
			require.Error(t, err)

			var serr *SettingsError
			require.True(t, errors.As(err, &serr))
			require.Len(t, serr.Fields, 1)
			assert.Equal(t, tt.field, serr.Fields[0].Field)
		})
	}
}

func TestAggregateClone(t *testing.T) {
	end := MustParseDate("2024-01-05")
	a := NewAggregate()
	a.Periods = append(a.Periods, Period{ID: "p1", StartDate: MustParseDate("2024-01-01"), EndDate: &end})
	a.CurrentPeriod = &Period{ID: "p2", StartDate: MustParseDate("2024-01-29")}
	day := MustParseDate("2024-01-02")
	a.Notes[day] = DailyNote{ID: "n1", Date: day, Symptoms: []string{"cramps"}}

	c := a.Clone()
	*c.Periods[0].EndDate = MustParseDate("2024-01-09")
	c.CurrentPeriod.StartDate = MustParseDate("2024-02-01")
	c.Notes[day].Symptoms[0] = "changed"

	assert.Equal(t, "2024-01-05", a.Periods[0].EndDate.String())
	assert.Equal(t, "2024-01-29", a.CurrentPeriod.StartDate.String())
	assert.Equal(t, "cramps", a.Notes[day].Symptoms[0])
}

func TestFindPeriod(t *testing.T) {
	end := MustParseDate("2024-01-05")
	a := NewAggregate()
	a.Periods = []Period{{ID: "p1", StartDate: MustParseDate("2024-01-01"), EndDate: &end}}
	a.CurrentPeriod = &Period{ID: "open", StartDate: MustParseDate("2024-01-29")}

	p, idx, ok := a.FindPeriod("p1")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 5, p.LengthDays())

	p, idx, ok = a.FindPeriod("open")
	require.True(t, ok)
	assert.Equal(t, -1, idx)
	assert.True(t, p.IsOpen())

	_, _, ok = a.FindPeriod("missing")
	assert.False(t, ok)
}
