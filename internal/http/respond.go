package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// maxBodyBytes caps request bodies; every payload here is a small JSON
// document.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFromError maps domain errors onto HTTP statuses. Unrecognized
// errors are treated as internal.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, core.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrInvalidRange), errors.Is(err, core.ErrIncompleteRange):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateCategory), errors.Is(err, auth.ErrPasswordAlreadySet):
		return http.StatusConflict
	case errors.Is(err, auth.ErrWrongPassword), errors.Is(err, auth.ErrPasswordNotSet):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrUnknownCategory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrDanglingCategory):
		// A transaction referencing a vanished category is a data
		// integrity fault, not a caller mistake.
		return http.StatusInternalServerError
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyName,
		core.ErrInvalidType,
		core.ErrInvalidDate,
		core.ErrMissingCategory,
		core.ErrLongDescription,
		auth.ErrWeakPassword,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondError logs server-side failures and writes the mapped status.
// Internal errors never leak their message to the caller.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	logger := applog.FromContext(r.Context())

	if status >= 500 {
		logger.ErrorContext(r.Context(), "request failed",
			applog.FieldError, err,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeError(w, status, "internal error")
		return
	}

	logger.WarnContext(r.Context(), "request rejected",
		applog.FieldError, err,
		applog.FieldStatusCode, status,
		applog.FieldPath, r.URL.Path)
	writeError(w, status, err.Error())
}
