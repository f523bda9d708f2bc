package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Validation family: rejected locally, reported only to the caller.
	ErrEmptySender    = fmt.Errorf("sender is empty")
	ErrEmptyText      = fmt.Errorf("text is empty")
	ErrUnknownSession = fmt.Errorf("unknown session")

	// ErrNotAllowed gates the purge operation behind the admin identity set.
	ErrNotAllowed = fmt.Errorf("identity is not allowed to purge messages")

	// ErrOverloaded means the ingestion queue is full; the caller may retry.
	ErrOverloaded = fmt.Errorf("ingestion queue is full")

	// Delivery path errors, consumed by the registry.
	ErrSlowConsumer = fmt.Errorf("delivery buffer exceeded")
	ErrSinkClosed   = fmt.Errorf("sink is closed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words have been found")
)

// IsValidation reports whether err belongs to the validation family.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptySender) ||
		errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrUnknownSession)
}

// MapToHTTPStatus translates a taxonomy error for the REST surface.
// Anything outside the taxonomy is a persistence failure.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ErrOverloaded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the wire code carried in websocket error frames.
func Code(err error) string {
	switch {
	case IsValidation(err):
		return "VALIDATION"
	case errors.Is(err, ErrNotAllowed):
		return "PERMISSION"
	case errors.Is(err, ErrOverloaded):
		return "OVERLOADED"
	default:
		return "PERSISTENCE"
	}
}
