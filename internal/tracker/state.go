package tracker

import (
	"context"
	"errors"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/store"
)

// UpdateSettings replaces the settings after validating them.
func (t *Tracker) UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error) {
	if ct, err := model.ParseClockTime(string(s.ReminderTime)); err == nil {
		s.ReminderTime = ct
	}
	if err := s.Validate(); err != nil {
		var serr *model.SettingsError
		if errors.As(err, &serr) && len(serr.Fields) > 0 {
			first := serr.Fields[0]
			return model.Settings{}, &ValidationError{Field: first.Field, Message: first.Message, Cause: serr}
		}
		return model.Settings{}, &ValidationError{Field: "settings", Message: err.Error(), Cause: err}
	}
	err := t.mutate(ctx, "update_settings", func(a *model.Aggregate) error {
		a.Settings = s
		return nil
	})
	if err != nil {
		return model.Settings{}, err
	}
	appLog.Info("settings updated",
		"cycle_length", s.CycleLength,
		"period_length", s.PeriodLength,
		"medication", s.MedicationTrackingEnabled,
		"reminder", s.ReminderEnabled,
	)
	return s, nil
}

// Import replaces the whole state with the document in data. The
// document is checked first; on any problem the state is unchanged.
func (t *Tracker) Import(ctx context.Context, data []byte) error {
	imported, err := store.DecodeStrict(data)
	if err != nil {
		appLog.Warn("import rejected", "reason", err.Error())
		return err
	}
	err = t.mutate(ctx, "import", func(a *model.Aggregate) error {
		*a = imported
		return nil
	})
	if err != nil {
		return err
	}
	appLog.Info("state imported", "periods", len(imported.Periods), "notes", len(imported.Notes))
	return nil
}

// Export returns the current state as a document Import accepts.
func (t *Tracker) Export() ([]byte, error) {
	return store.Encode(t.Snapshot())
}

// Reset replaces the state with an empty aggregate.
func (t *Tracker) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	err := t.mutate(ctx, "reset", func(a *model.Aggregate) error {
		*a = model.NewAggregate()
		return nil
	})
	if err != nil {
		return err
	}
	appLog.Warn("state reset")
	return nil
}
