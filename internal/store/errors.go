package store

import (
	"errors"
	"strings"
)

var (
	// ErrCorruptState is returned by Load when the persisted document is
	// not a JSON object at all. Field-level damage never surfaces; it is
	// defaulted away by Decode.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrImportParse is returned when an import document is not JSON.
	ErrImportParse = errors.New("import: document is not valid JSON")

	// ErrImportInvalid is returned when an import document parses but
	// does not have the shape of an aggregate.
	ErrImportInvalid = errors.New("import: document does not describe a valid state")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// ImportError lists every structural problem found in an import document.
type ImportError struct {
	Problems []string
}

func (e *ImportError) Error() string {
	return ErrImportInvalid.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ImportError) Unwrap() error {
	return ErrImportInvalid
}
