// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrRateLimited      = errors.New("rate limited")
	ErrMisconfigured    = errors.New("service misconfigured")
)

// MisconfiguredMessage is returned when required service credentials are absent.
const MisconfiguredMessage = "Service misconfigured"

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unrecognised errors become a 500 with no detail; callers log them first.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrMethodNotAllowed):
		Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", err.Error())
	case errors.Is(err, ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", err.Error())
	case errors.Is(err, ErrMisconfigured):
		Problem(w, http.StatusInternalServerError, "Internal Error", MisconfiguredMessage)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Error writes a problem document whose title is the standard status text.
func Error(w http.ResponseWriter, status int, detail string) {
	Problem(w, status, http.StatusText(status), detail)
}
