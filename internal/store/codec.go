package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

// Encode serializes the whole aggregate. The same bytes are used for the
// persisted blob and for exports.
func Encode(a model.Aggregate) ([]byte, error) {
	if a.Periods == nil {
		a.Periods = []model.Period{}
	}
	if a.Notes == nil {
		a.Notes = map[model.Date]model.DailyNote{}
	}
	if a.MedicationEvents == nil {
		a.MedicationEvents = map[model.Date]model.MedicationEvent{}
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode restores a persisted aggregate, defaulting every missing or
// malformed nested property field by field:
//
//   - missing/unparsable collections become empty
//   - period entries without a usable start, or ending before they
//     start, are dropped; an open entry found in the history becomes
//     the current period when that slot is free
//   - notes and medication events are keyed by the map key's date
//   - each settings field falls back to its default when missing,
//     wrongly typed or out of range
//   - missing or duplicate record IDs are replaced
//
// Only a document that is not a JSON object yields ErrCorruptState.
func Decode(data []byte) (model.Aggregate, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return model.Aggregate{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if top == nil {
		return model.Aggregate{}, fmt.Errorf("%w: document is null", ErrCorruptState)
	}

	a := model.NewAggregate()
	a.Settings = decodeSettings(top["settings"])

	var open []model.Period
	a.Periods, open = decodePeriods(top["periods"])
	a.CurrentPeriod = decodeCurrent(top["currentPeriod"], &a.Periods)
	if a.CurrentPeriod == nil && len(open) > 0 {
		latest := open[len(open)-1]
		a.CurrentPeriod = &latest
	}
	model.SortPeriods(a.Periods)

	a.Notes = decodeNotes(top["notes"])
	a.MedicationEvents = decodeMedication(top["medicationEvents"], a.Settings.ReminderTime)

	dedupeIDs(&a)
	return a, nil
}

type rawPeriod struct {
	ID        string  `json:"id"`
	StartDate string  `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

func (r rawPeriod) toPeriod() (model.Period, bool) {
	start, err := model.ParseDate(r.StartDate)
	if err != nil {
		return model.Period{}, false
	}
	p := model.Period{ID: r.ID, StartDate: start}
	if r.EndDate != nil {
		end, err := model.ParseDate(*r.EndDate)
		if err != nil || end.Before(start) {
			return model.Period{}, false
		}
		p.EndDate = &end
	}
	if p.ID == "" {
		p.ID = model.NewID()
	}
	return p, true
}

func decodePeriods(raw json.RawMessage) (closed, open []model.Period) {
	closed = []model.Period{}
	if isAbsent(raw) {
		return closed, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		appLog.Warn("state: periods is not a list; defaulting to empty", "err", err)
		return closed, nil
	}
	for i, item := range items {
		var rp rawPeriod
		if err := json.Unmarshal(item, &rp); err != nil {
			appLog.Warn("state: dropping malformed period", "index", i, "err", err)
			continue
		}
		p, ok := rp.toPeriod()
		if !ok {
			appLog.Warn("state: dropping period with invalid dates", "index", i)
			continue
		}
		if p.IsOpen() {
			open = append(open, p)
			continue
		}
		closed = append(closed, p)
	}
	model.SortPeriods(open)
	return closed, open
}

// decodeCurrent returns the open period; a current period that arrives
// already closed is moved into the history.
func decodeCurrent(raw json.RawMessage, history *[]model.Period) *model.Period {
	if isAbsent(raw) {
		return nil
	}
	var rp rawPeriod
	if err := json.Unmarshal(raw, &rp); err != nil {
		appLog.Warn("state: dropping malformed current period", "err", err)
		return nil
	}
	p, ok := rp.toPeriod()
	if !ok {
		appLog.Warn("state: dropping current period with invalid dates")
		return nil
	}
	if !p.IsOpen() {
		*history = append(*history, p)
		return nil
	}
	return &p
}

type rawNote struct {
	ID       string   `json:"id"`
	Symptoms []string `json:"symptoms"`
	Notes    string   `json:"notes"`
}

func decodeNotes(raw json.RawMessage) map[model.Date]model.DailyNote {
	out := map[model.Date]model.DailyNote{}
	if isAbsent(raw) {
		return out
	}
	var items map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		appLog.Warn("state: notes is not an object; defaulting to empty", "err", err)
		return out
	}
	for key, item := range items {
		day, err := model.ParseDate(key)
		if err != nil {
			appLog.Warn("state: dropping note with invalid date key", "key", key)
			continue
		}
		var rn rawNote
		if err := json.Unmarshal(item, &rn); err != nil {
			appLog.Warn("state: dropping malformed note", "date", key, "err", err)
			continue
		}
		note := model.DailyNote{
			ID:       rn.ID,
			Date:     day,
			Symptoms: model.NormalizeSymptoms(rn.Symptoms),
			Notes:    rn.Notes,
		}
		if note.IsEmpty() {
			continue
		}
		if note.ID == "" {
			note.ID = model.NewID()
		}
		out[day] = note
	}
	return out
}

type rawMedication struct {
	ID           string `json:"id"`
	Taken        bool   `json:"taken"`
	Time         string `json:"time"`
	MissedReason string `json:"missedReason"`
}

func decodeMedication(raw json.RawMessage, fallbackTime model.ClockTime) map[model.Date]model.MedicationEvent {
	out := map[model.Date]model.MedicationEvent{}
	if isAbsent(raw) {
		return out
	}
	var items map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		appLog.Warn("state: medicationEvents is not an object; defaulting to empty", "err", err)
		return out
	}
	for key, item := range items {
		day, err := model.ParseDate(key)
		if err != nil {
			appLog.Warn("state: dropping medication event with invalid date key", "key", key)
			continue
		}
		var rm rawMedication
		if err := json.Unmarshal(item, &rm); err != nil {
			appLog.Warn("state: dropping malformed medication event", "date", key, "err", err)
			continue
		}
		ev := model.MedicationEvent{ID: rm.ID, Date: day, Taken: rm.Taken}
		if rm.Taken {
			t, err := model.ParseClockTime(rm.Time)
			if err != nil {
				t = fallbackTime
			}
			ev.Time = t
		} else {
			ev.MissedReason = rm.MissedReason
		}
		if ev.ID == "" {
			ev.ID = model.NewID()
		}
		out[day] = ev
	}
	return out
}

func decodeSettings(raw json.RawMessage) model.Settings {
	s := model.DefaultSettings()
	if isAbsent(raw) {
		return s
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		appLog.Warn("state: settings is not an object; using defaults", "err", err)
		return s
	}

	intField(fields, "cycleLength", &s.CycleLength)
	intField(fields, "periodLength", &s.PeriodLength)
	intField(fields, "packDays", &s.PackDays)
	boolField(fields, "showNextPeriodPrediction", &s.ShowNextPeriodPrediction)
	boolField(fields, "showOvulation", &s.ShowOvulation)
	boolField(fields, "showSafeDays", &s.ShowSafeDays)
	boolField(fields, "medicationTrackingEnabled", &s.MedicationTrackingEnabled)
	boolField(fields, "reminderEnabled", &s.ReminderEnabled)
	boolField(fields, "showScheduleOnCalendar", &s.ShowScheduleOnCalendar)

	var reminder string
	if v, ok := fields["reminderTime"]; ok && json.Unmarshal(v, &reminder) == nil {
		if t, err := model.ParseClockTime(reminder); err == nil {
			s.ReminderTime = t
		}
	}

	if s.CycleLength < model.MinCycleLength || s.CycleLength > model.MaxCycleLength {
		s.CycleLength = model.DefaultCycleLength
	}
	if s.PeriodLength < 1 || s.PeriodLength >= s.CycleLength {
		s.PeriodLength = min(model.DefaultPeriodLength, s.CycleLength-1)
	}
	if s.PackDays < model.MinPackDays || s.PackDays > model.MaxPackDays {
		s.PackDays = model.DefaultPackDays
	}
	return s
}

func intField(fields map[string]json.RawMessage, key string, dst *int) {
	v, ok := fields[key]
	if !ok {
		return
	}
	var n int
	if err := json.Unmarshal(v, &n); err != nil {
		appLog.Debug("state: settings field malformed; keeping default", "field", key)
		return
	}
	*dst = n
}

func boolField(fields map[string]json.RawMessage, key string, dst *bool) {
	v, ok := fields[key]
	if !ok {
		return
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		appLog.Debug("state: settings field malformed; keeping default", "field", key)
		return
	}
	*dst = b
}

// dedupeIDs gives a fresh ID to any record whose ID collides with an
// earlier one. Records are visited in date order so the same document
// always keeps the same IDs.
func dedupeIDs(a *model.Aggregate) {
	seen := map[string]bool{}
	claim := func(id *string) {
		if *id == "" || seen[*id] {
			*id = model.NewID()
		}
		seen[*id] = true
	}
	for i := range a.Periods {
		claim(&a.Periods[i].ID)
	}
	if a.CurrentPeriod != nil {
		claim(&a.CurrentPeriod.ID)
	}
	for _, k := range sortedDates(a.Notes) {
		n := a.Notes[k]
		claim(&n.ID)
		a.Notes[k] = n
	}
	for _, k := range sortedDates(a.MedicationEvents) {
		e := a.MedicationEvents[k]
		claim(&e.ID)
		a.MedicationEvents[k] = e
	}
}

func sortedDates[V any](m map[model.Date]V) []model.Date {
	return slices.SortedFunc(maps.Keys(m), model.Date.Compare)
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeStrict parses an import document. Unlike Decode it does not
// repair anything except missing record IDs: the document must have the
// aggregate's shape and satisfy its invariants, otherwise an
// *ImportError lists what is wrong.
func DecodeStrict(data []byte) (model.Aggregate, error) {
	if !json.Valid(data) {
		return model.Aggregate{}, ErrImportParse
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return model.Aggregate{}, &ImportError{Problems: []string{"top level must be an object"}}
	}
	if _, ok := top["settings"]; !ok {
		return model.Aggregate{}, &ImportError{Problems: []string{"settings: missing"}}
	}

	var a model.Aggregate
	if err := json.Unmarshal(data, &a); err != nil {
		return model.Aggregate{}, &ImportError{Problems: []string{describeJSONError(err)}}
	}
	if a.Periods == nil {
		a.Periods = []model.Period{}
	}
	if a.Notes == nil {
		a.Notes = map[model.Date]model.DailyNote{}
	}
	if a.MedicationEvents == nil {
		a.MedicationEvents = map[model.Date]model.MedicationEvent{}
	}

	var problems []string
	seen := map[string]bool{}
	checkID := func(what string, id *string) {
		if *id == "" {
			*id = model.NewID()
		}
		if seen[*id] {
			problems = append(problems, fmt.Sprintf("%s: duplicate id %q", what, *id))
		}
		seen[*id] = true
	}

	for i := range a.Periods {
		p := &a.Periods[i]
		what := fmt.Sprintf("periods[%d]", i)
		checkID(what, &p.ID)
		switch {
		case p.StartDate.IsZero():
			problems = append(problems, what+": startDate missing")
		case p.EndDate == nil:
			problems = append(problems, what+": endDate missing (open periods belong in currentPeriod)")
		case p.EndDate.Before(p.StartDate):
			problems = append(problems, what+": endDate before startDate")
		}
	}
	model.SortPeriods(a.Periods)

	if cp := a.CurrentPeriod; cp != nil {
		checkID("currentPeriod", &cp.ID)
		if cp.StartDate.IsZero() {
			problems = append(problems, "currentPeriod: startDate missing")
		}
		if cp.EndDate != nil {
			problems = append(problems, "currentPeriod: must not have an endDate")
		}
	}

	for _, key := range sortedDates(a.Notes) {
		n := a.Notes[key]
		what := "notes[" + key.String() + "]"
		checkID(what, &n.ID)
		if n.Date.IsZero() {
			n.Date = key
		} else if !n.Date.Equal(key) {
			problems = append(problems, what+": date does not match key")
		}
		a.Notes[key] = n
	}

	for _, key := range sortedDates(a.MedicationEvents) {
		e := a.MedicationEvents[key]
		what := "medicationEvents[" + key.String() + "]"
		checkID(what, &e.ID)
		if e.Date.IsZero() {
			e.Date = key
		} else if !e.Date.Equal(key) {
			problems = append(problems, what+": date does not match key")
		}
		if e.Taken && !e.Time.Valid() {
			problems = append(problems, what+": taken events need a HH:MM time")
		}
		if !e.Taken && e.Time != "" {
			problems = append(problems, what+": time is only allowed on taken events")
		}
		a.MedicationEvents[key] = e
	}

	if err := a.Settings.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return model.Aggregate{}, &ImportError{Problems: problems}
	}
	return a, nil
}

func describeJSONError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return err.Error()
}
