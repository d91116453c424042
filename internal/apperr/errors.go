// Package apperr holds the error kinds shared by the persistence layer,
// the parsing pipeline and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrTooLarge     = errors.New("payload too large")
	ErrExternal     = errors.New("external service error")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(what string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
}

func Forbidden(what string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrForbidden, what, id)
}

// External wraps err as a failure of an outside dependency.
func External(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternal, service, err)
}
