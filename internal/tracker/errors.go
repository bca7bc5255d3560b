package tracker

import (
	"errors"
	"fmt"

	"cyclecal/internal/model"
	"cyclecal/internal/store"
)

var (
	// ErrValidation marks input rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrOverlap marks a period range that intersects a recorded one.
	ErrOverlap = errors.New("period overlaps an existing period")

	// ErrConfirmationRequired is returned by destructive operations
	// called without confirm.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrPeriodOpen is returned when starting a period while one is open.
	ErrPeriodOpen = errors.New("a period is already in progress")

	// ErrNoOpenPeriod is returned when ending a period while none is open.
	ErrNoOpenPeriod = errors.New("no period in progress")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError names the offending field. Cause, when set, carries
// the detailed error (for settings, a *model.SettingsError).
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// OverlapError lists the recorded periods a candidate range intersects.
type OverlapError struct {
	Conflicts []model.Period
}

func (e *OverlapError) Error() string {
	if len(e.Conflicts) == 1 {
		return fmt.Sprintf("%s (starting %s)", ErrOverlap, e.Conflicts[0].StartDate)
	}
	return fmt.Sprintf("%s (%d periods)", ErrOverlap, len(e.Conflicts))
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// IsClientError reports whether err was caused by the request rather
// than by the tracker or its storage.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrOverlap,
		ErrConfirmationRequired,
		ErrPeriodOpen,
		ErrNoOpenPeriod,
		ErrNotFound,
		store.ErrImportParse,
		store.ErrImportInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConfirmable reports whether repeating the call with confirm set
// would let it proceed.
func IsConfirmable(err error) bool {
	return errors.Is(err, ErrOverlap) || errors.Is(err, ErrConfirmationRequired)
}
