package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sugarline/sugarline-core/internal/entry"
	"github.com/sugarline/sugarline-core/internal/tenant"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeValidationError writes a 400 error response for malformed filters.
func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeValidation, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps domain sentinel errors to wire responses. Anything
// unmapped is an internal error; the message is deliberately generic so
// storage details never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entry.ErrInvalidQuery):
		writeValidationError(w, err.Error())
	case errors.Is(err, entry.ErrInvalidTimestamp):
		writeBadRequest(w, err.Error())
	case errors.Is(err, entry.ErrEntryNotFound):
		writeNotFound(w, "entry not found")
	case errors.Is(err, tenant.ErrSecretMismatch):
		writeUnauthorized(w, tenant.ErrSecretMismatch.Error())
	case errors.Is(err, tenant.ErrAuthFailed):
		writeUnauthorized(w, tenant.ErrAuthFailed.Error())
	case errors.Is(err, tenant.ErrEmailExists):
		writeConflict(w, tenant.ErrEmailExists.Error())
	case errors.Is(err, tenant.ErrSlugExists):
		writeConflict(w, tenant.ErrSlugExists.Error())
	case errors.Is(err, tenant.ErrTenantNotFound), errors.Is(err, tenant.ErrUserNotFound):
		writeNotFound(w, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
