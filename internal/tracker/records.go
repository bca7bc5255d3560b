package tracker

import (
	"context"
	"fmt"
	"strings"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

// SaveNote stores the note for date. A note without symptoms or text
// removes any existing note for that day; deleted reports that case.
func (t *Tracker) SaveNote(ctx context.Context, date model.Date, symptoms []string, text string) (note model.DailyNote, deleted bool, err error) {
	err = t.mutate(ctx, "save_note", func(a *model.Aggregate) error {
		if date.IsZero() {
			return invalid("date", "is required")
		}
		candidate := model.DailyNote{
			Date:     date,
			Symptoms: model.NormalizeSymptoms(symptoms),
			Notes:    strings.TrimSpace(text),
		}
		existing, had := a.Notes[date]
		if candidate.IsEmpty() {
			if had {
				delete(a.Notes, date)
				deleted = true
			}
			return nil
		}
		candidate.ID = existing.ID
		if candidate.ID == "" {
			candidate.ID = model.NewID()
		}
		a.Notes[date] = candidate
		note = candidate
		return nil
	})
	if err != nil {
		return model.DailyNote{}, false, err
	}
	appLog.Debug("note saved", "date", date.String(), "deleted", deleted)
	return note, deleted, nil
}

// DeleteNote removes the note for date.
func (t *Tracker) DeleteNote(ctx context.Context, date model.Date, confirm bool) error {
	return t.mutate(ctx, "delete_note", func(a *model.Aggregate) error {
		if _, ok := a.Notes[date]; !ok {
			return fmt.Errorf("note for %s: %w", date, ErrNotFound)
		}
		if !confirm {
			return ErrConfirmationRequired
		}
		delete(a.Notes, date)
		return nil
	})
}

// MedicationInput is one medication record as entered by the user.
type MedicationInput struct {
	Date         model.Date `json:"date"`
	Taken        bool       `json:"taken"`
	Time         string     `json:"time,omitempty"`
	MissedReason string     `json:"missedReason,omitempty"`
}

// RecordMedication stores the record for in.Date, replacing any earlier
// one for that day. A taken record without a time gets the reminder
// time.
func (t *Tracker) RecordMedication(ctx context.Context, in MedicationInput) (model.MedicationEvent, error) {
	var ev model.MedicationEvent
	err := t.mutate(ctx, "record_medication", func(a *model.Aggregate) error {
		if in.Date.IsZero() {
			return invalid("date", "is required")
		}
		ev = model.MedicationEvent{ID: a.MedicationEvents[in.Date].ID, Date: in.Date, Taken: in.Taken}
		if ev.ID == "" {
			ev.ID = model.NewID()
		}
		if in.Taken {
			ev.Time = a.Settings.ReminderTime
			if strings.TrimSpace(in.Time) != "" {
				ct, err := model.ParseClockTime(in.Time)
				if err != nil {
					return invalid("time", "must be HH:MM")
				}
				ev.Time = ct
			}
		} else {
			ev.MissedReason = strings.TrimSpace(in.MissedReason)
		}
		a.MedicationEvents[in.Date] = ev
		return nil
	})
	if err != nil {
		return model.MedicationEvent{}, err
	}
	appLog.Debug("medication recorded", "date", in.Date.String(), "taken", ev.Taken)
	return ev, nil
}

// DeleteMedication removes the record for date.
func (t *Tracker) DeleteMedication(ctx context.Context, date model.Date, confirm bool) error {
	return t.mutate(ctx, "delete_medication", func(a *model.Aggregate) error {
		if _, ok := a.MedicationEvents[date]; !ok {
			return fmt.Errorf("medication record for %s: %w", date, ErrNotFound)
		}
		if !confirm {
			return ErrConfirmationRequired
		}
		delete(a.MedicationEvents, date)
		return nil
	})
}
