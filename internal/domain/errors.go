package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors for the lifecycle taxonomy - use with errors.Is()
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateCode     = errors.New("document code already exists")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrHasDependents     = errors.New("document has linked dependents")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrSourceMissing     = errors.New("source file missing")
	ErrConversionFailed  = errors.New("conversion failed")
	ErrSigningFailed     = errors.New("signing failed")
	ErrStorage           = errors.New("storage failure")
	ErrUnauthorized      = errors.New("unauthorized")
)

// DuplicateCodeError carries the conflicting business code so callers can
// surface which code collided.
type DuplicateCodeError struct {
	Codigo string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("document code '%s' already exists", e.Codigo)
}

func (e *DuplicateCodeError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrDuplicateCode
func (e *DuplicateCodeError) Is(target error) bool {
	return target == ErrDuplicateCode
}

// InvalidTransitionError reports a lifecycle guard failure: the operation
// required a state the document was not in.
type InvalidTransitionError struct {
	Operation string
	Estado    string
	Required  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s requires state '%s', document is '%s'", e.Operation, e.Required, e.Estado)
}

func (e *InvalidTransitionError) StatusCode() int { return http.StatusConflict }

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// UnsupportedFormatError names the rejected file extension.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format '%s'", e.Ext)
}

func (e *UnsupportedFormatError) StatusCode() int { return http.StatusBadRequest }

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}
