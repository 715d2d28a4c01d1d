// ABOUTME: Error kinds shared by ingestion, storage, and query layers.
// ABOUTME: Callers match them with errors.Is after any amount of wrapping.
package models

import (
	"errors"
	"fmt"
)

var (
	ErrSourceNotFound     = errors.New("source not found")
	ErrMalformedInput     = errors.New("malformed input")
	ErrSchemaMismatch     = errors.New("schema mismatch")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrInvalidInterval    = errors.New("invalid interval")
	ErrInvalidParams      = errors.New("invalid parameters")
	ErrRunInProgress      = errors.New("ingestion run in progress")
)

// DateParseError reports a date attribute that does not match the export format.
type DateParseError struct {
	Field string
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parse %s %q: expected YYYY-MM-DD HH:MM:SS ±HHMM", e.Field, e.Value)
}

// Is makes a DateParseError match ErrMalformedInput.
func (e *DateParseError) Is(target error) bool {
	return target == ErrMalformedInput
}

// ErrorKind names the error kind of err for structured responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceNotFound):
		return "SourceNotFound"
	case errors.Is(err, ErrMalformedInput):
		return "MalformedInput"
	case errors.Is(err, ErrSchemaMismatch):
		return "SchemaMismatch"
	case errors.Is(err, ErrBackendUnavailable):
		return "BackendUnavailable"
	case errors.Is(err, ErrInvalidInterval):
		return "InvalidInterval"
	case errors.Is(err, ErrInvalidParams):
		return "InvalidParams"
	case errors.Is(err, ErrRunInProgress):
		return "RunInProgress"
	default:
		return "Internal"
	}
}
