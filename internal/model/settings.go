package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultCycleLength  = 28
	DefaultPeriodLength = 5
	DefaultPackDays     = 21
	DefaultReminderTime = ClockTime("09:00")

	MinCycleLength = 21
	MaxCycleLength = 40
	MinPackDays    = 14
	MaxPackDays    = 28
)

// Settings are the user preferences that drive predictions and which
// overlays are shown.
type Settings struct {
	CycleLength               int       `json:"cycleLength" validate:"min=21,max=40"`
	PeriodLength              int       `json:"periodLength" validate:"min=1,ltfield=CycleLength"`
	ShowNextPeriodPrediction  bool      `json:"showNextPeriodPrediction"`
	ShowOvulation             bool      `json:"showOvulation"`
	ShowSafeDays              bool      `json:"showSafeDays"`
	MedicationTrackingEnabled bool      `json:"medicationTrackingEnabled"`
	ReminderEnabled           bool      `json:"reminderEnabled"`
	ReminderTime              ClockTime `json:"reminderTime" validate:"required,datetime=15:04"`
	ShowScheduleOnCalendar    bool      `json:"showScheduleOnCalendar"`
	PackDays                  int       `json:"packDays" validate:"min=14,max=28"`
}

// DefaultSettings returns the settings a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		CycleLength:               DefaultCycleLength,
		PeriodLength:              DefaultPeriodLength,
		ShowNextPeriodPrediction:  true,
		ShowOvulation:             true,
		ShowSafeDays:              false,
		MedicationTrackingEnabled: false,
		ReminderEnabled:           false,
		ReminderTime:              DefaultReminderTime,
		ShowScheduleOnCalendar:    true,
		PackDays:                  DefaultPackDays,
	}
}

var validate = validator.New()

// FieldError names one settings field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// SettingsError collects every invalid field.
type SettingsError struct {
	Fields []FieldError
}

func (e *SettingsError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// Validate checks the numeric ranges and the reminder time format.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &SettingsError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   jsonFieldName(fe.Field()),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "ltfield":
		return "must be less than " + jsonFieldName(fe.Param())
	case "required":
		return "is required"
	case "datetime":
		return "must be a HH:MM time"
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func jsonFieldName(goName string) string {
	if goName == "" {
		return goName
	}
	return strings.ToLower(goName[:1]) + goName[1:]
}
