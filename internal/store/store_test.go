package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclecal/internal/model"
)

func date(s string) model.Date { return model.MustParseDate(s) }

func datePtr(s string) *model.Date {
	d := date(s)
	return &d
}

// sampleAggregate is a valid aggregate touching every field.
func sampleAggregate() model.Aggregate {
	a := model.NewAggregate()
	a.Periods = []model.Period{
		{ID: "p1", StartDate: date("2024-01-01"), EndDate: datePtr("2024-01-05")},
		{ID: "p2", StartDate: date("2024-01-29"), EndDate: datePtr("2024-02-02")},
	}
	a.CurrentPeriod = &model.Period{ID: "p3", StartDate: date("2024-02-26")}
	a.Notes[date("2024-01-02")] = model.DailyNote{
		ID: "n1", Date: date("2024-01-02"), Symptoms: []string{"cramps", "fatigue"}, Notes: "rough day",
	}
	a.Notes[date("2024-01-10")] = model.DailyNote{
		ID: "n2", Date: date("2024-01-10"), Symptoms: []string{}, Notes: "text only",
	}
	a.MedicationEvents[date("2024-03-01")] = model.MedicationEvent{
		ID: "m1", Date: date("2024-03-01"), Taken: true, Time: "08:30",
	}
	a.MedicationEvents[date("2024-03-02")] = model.MedicationEvent{
		ID: "m2", Date: date("2024-03-02"), Taken: false, MissedReason: "forgot",
	}
	a.Settings.ShowSafeDays = true
	a.Settings.MedicationTrackingEnabled = true
	a.Settings.PackDays = 24
	return a
}

func TestExportImportRoundTrip(t *testing.T) {
	for name, a := range map[string]model.Aggregate{
		"empty":  model.NewAggregate(),
		"sample": sampleAggregate(),
	} {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(a)
			require.NoError(t, err)

			got, err := DecodeStrict(data)
			require.NoError(t, err)
			assert.Equal(t, a, got)

			// The lenient loader must agree with the strict one on valid input.
			loaded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, a, loaded)
		})
	}
}

func TestDecodeDefaultsMissingFields(t *testing.T) {
	a, err := Decode([]byte(`{"settings":{"periodLength":4,"showOvulation":false}}`))
	require.NoError(t, err)

	assert.Equal(t, 28, a.Settings.CycleLength)
	assert.Equal(t, 4, a.Settings.PeriodLength)
	assert.False(t, a.Settings.ShowOvulation)
	assert.True(t, a.Settings.ShowNextPeriodPrediction)
	assert.Equal(t, 21, a.Settings.PackDays)
	assert.Equal(t, model.ClockTime("09:00"), a.Settings.ReminderTime)
	assert.NotNil(t, a.Periods)
	assert.Empty(t, a.Periods)
	assert.Nil(t, a.CurrentPeriod)
	assert.NotNil(t, a.Notes)
	assert.NotNil(t, a.MedicationEvents)
}

func TestDecodeDefaultsMalformedFields(t *testing.T) {
	doc := `{
		"periods": [
			{"id":"b","startDate":"2024-01-29","endDate":"2024-02-02"},
			{"id":"a","startDate":"2024-01-01","endDate":"2024-01-05"},
			{"id":"bad","startDate":"not-a-date","endDate":"2024-01-05"},
			{"id":"rev","startDate":"2024-03-10","endDate":"2024-03-01"},
			{"startDate":"2024-02-26","endDate":null},
			42
		],
		"notes": {
			"2024-01-02": {"symptoms":["cramps","cramps"," "],"notes":""},
			"2024-01-03": {"symptoms":[],"notes":"   "},
			"garbage": {"notes":"x"}
		},
		"medicationEvents": {
			"2024-03-01": {"taken":true},
			"2024-03-02": {"taken":false,"time":"08:00","missedReason":"away"},
			"2024-03-03": "yes"
		},
		"settings": {"cycleLength":"28","periodLength":99,"packDays":5,"reminderTime":"late","showSafeDays":"yes"},
		"somethingNew": true
	}`

	a, err := Decode([]byte(doc))
	require.NoError(t, err)

	require.Len(t, a.Periods, 2)
	assert.Equal(t, "a", a.Periods[0].ID)
	assert.Equal(t, "b", a.Periods[1].ID)

	require.NotNil(t, a.CurrentPeriod, "open history entry becomes the current period")
	assert.Equal(t, "2024-02-26", a.CurrentPeriod.StartDate.String())
	assert.NotEmpty(t, a.CurrentPeriod.ID)

	require.Len(t, a.Notes, 1)
	assert.Equal(t, []string{"cramps"}, a.Notes[date("2024-01-02")].Symptoms)

	require.Len(t, a.MedicationEvents, 2)
	assert.Equal(t, model.ClockTime("09:00"), a.MedicationEvents[date("2024-03-01")].Time)
	missed := a.MedicationEvents[date("2024-03-02")]
	assert.Empty(t, missed.Time)
	assert.Equal(t, "away", missed.MissedReason)

	assert.Equal(t, model.DefaultSettings(), a.Settings)
}

func TestDecodeClosedCurrentPeriodMovesToHistory(t *testing.T) {
	a, err := Decode([]byte(`{"currentPeriod":{"id":"c","startDate":"2024-01-01","endDate":"2024-01-04"}}`))
	require.NoError(t, err)
	assert.Nil(t, a.CurrentPeriod)
	require.Len(t, a.Periods, 1)
	assert.Equal(t, "c", a.Periods[0].ID)
}

func TestDecodeDuplicateIDsAreReplaced(t *testing.T) {
	a, err := Decode([]byte(`{"periods":[
		{"id":"same","startDate":"2024-01-01","endDate":"2024-01-05"},
		{"id":"same","startDate":"2024-01-29","endDate":"2024-02-02"}
	]}`))
	require.NoError(t, err)
	require.Len(t, a.Periods, 2)
	assert.NotEqual(t, a.Periods[0].ID, a.Periods[1].ID)
}

func TestDecodeDuplicateRecordIDsAreStable(t *testing.T) {
	doc := []byte(`{
		"notes":{
			"2024-01-10":{"id":"dup","notes":"later"},
			"2024-01-02":{"id":"dup","notes":"earlier"}
		},
		"medicationEvents":{
			"2024-03-02":{"id":"dup","taken":false},
			"2024-03-01":{"id":"m1","taken":true,"time":"08:30"}
		}
	}`)

	for range 20 {
		a, err := Decode(doc)
		require.NoError(t, err)
		assert.Equal(t, "dup", a.Notes[date("2024-01-02")].ID, "earliest record keeps its id")
		assert.NotEqual(t, "dup", a.Notes[date("2024-01-10")].ID)
		assert.NotEqual(t, "dup", a.MedicationEvents[date("2024-03-02")].ID)
		assert.Equal(t, "m1", a.MedicationEvents[date("2024-03-01")].ID)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	for _, doc := range []string{"", "{", "[1,2]", "null", `"text"`} {
		_, err := Decode([]byte(doc))
		assert.ErrorIs(t, err, ErrCorruptState, doc)
	}
}

func TestDecodeStrictRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"not json", `{"periods":`, ErrImportParse},
		{"array", `[]`, ErrImportInvalid},
		{"no settings", `{"periods":[]}`, ErrImportInvalid},
		{"wrong type", `{"periods":"nope","settings":{}}`, ErrImportInvalid},
		{"open in history", `{"periods":[{"id":"x","startDate":"2024-01-01","endDate":null}],"settings":{"cycleLength":28,"periodLength":5,"packDays":21,"reminderTime":"09:00"}}`, ErrImportInvalid},
		{"end before start", `{"periods":[{"id":"x","startDate":"2024-01-05","endDate":"2024-01-01"}],"settings":{"cycleLength":28,"periodLength":5,"packDays":21,"reminderTime":"09:00"}}`, ErrImportInvalid},
		{"closed current", `{"currentPeriod":{"id":"x","startDate":"2024-01-01","endDate":"2024-01-02"},"settings":{"cycleLength":28,"periodLength":5,"packDays":21,"reminderTime":"09:00"}}`, ErrImportInvalid},
		{"settings range", `{"settings":{"cycleLength":50,"periodLength":5,"packDays":21,"reminderTime":"09:00"}}`, ErrImportInvalid},
		{"taken without time", `{"medicationEvents":{"2024-03-01":{"id":"m","date":"2024-03-01","taken":true}},"settings":{"cycleLength":28,"periodLength":5,"packDays":21,"reminderTime":"09:00"}}`, ErrImportInvalid},
		{"bad date", `{"periods":[{"id":"x","startDate":"yesterday","endDate":"2024-01-01"}],"settings":{"cycleLength":28,"periodLength":5,"packDays":21,"reminderTime":"09:00"}}`, ErrImportInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStrict([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeStrictAssignsMissingIDs(t *testing.T) {
	a, err := DecodeStrict([]byte(`{
		"periods":[{"startDate":"2024-01-29","endDate":"2024-02-02"},{"startDate":"2024-01-01","endDate":"2024-01-05"}],
		"settings":{"cycleLength":28,"periodLength":5,"packDays":21,"reminderTime":"09:00"}
	}`))
	require.NoError(t, err)
	require.Len(t, a.Periods, 2)
	assert.Equal(t, "2024-01-01", a.Periods[0].StartDate.String())
	assert.NotEmpty(t, a.Periods[0].ID)
	assert.NotEmpty(t, a.Periods[1].ID)
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)

	sq, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{BackendFile: fs, BackendSQLite: sq}
}

func TestStoreLoadEmptyThenSave(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.NewAggregate(), a)

			want := sampleAggregate()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// Save replaces, never appends.
			want.Periods = want.Periods[:1]
			require.NoError(t, s.Save(ctx, want))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got.Periods, 1)
		})
	}
}

func TestFileStorePermissionsAndNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleAggregate()))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreCorruptAndQuarantine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptState)

	moved, err := s.Quarantine(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "{{{", string(data), "quarantined blob keeps the original bytes")

	a, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NewAggregate(), a)
}

func TestSQLiteStoreQuarantine(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO state (id, document, updated_at) VALUES (1, 'garbage', 'now')`)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptState)

	where, err := s.Quarantine(ctx)
	require.NoError(t, err)
	assert.Contains(t, where, "state_quarantine/")

	var doc string
	require.NoError(t, s.db.QueryRow(`SELECT document FROM state_quarantine`).Scan(&doc))
	assert.Equal(t, "garbage", doc)

	a, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NewAggregate(), a)
}

func TestOpen(t *testing.T) {
	s, err := Open(BackendFile, filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open("postgres", "x")
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}
