package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hrsignal/temporal-engine/pkg/temporal"
	"github.com/hrsignal/temporal-engine/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the engine's error taxonomy to HTTP statuses and
// writes the error. Conflicts carry the colliding record IDs so callers can
// repair their input.
func writeDomainError(w http.ResponseWriter, err error) {
	var overlap *temporal.OverlapError
	if errors.As(err, &overlap) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       err.Error(),
			"conflictIds": overlap.ConflictIDs,
		})
		return
	}
	writeError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, temporal.ErrOverlapConflict),
		errors.Is(err, temporal.ErrAlreadyClosed):
		return http.StatusConflict
	case errors.Is(err, temporal.ErrNotFound),
		errors.Is(err, validator.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, validator.ErrTenantMismatch):
		return http.StatusForbidden
	case errors.Is(err, temporal.ErrInvalidRange),
		errors.Is(err, validator.ErrMissingIdentifier),
		errors.Is(err, validator.ErrArithmeticMismatch),
		errors.Is(err, validator.ErrNegativeValue),
		errors.Is(err, validator.ErrBoundsViolation):
		return http.StatusBadRequest
	default:
		// Includes temporal.ErrInvariantViolation: a halted series is a
		// server-side defect, never a caller error.
		return http.StatusInternalServerError
	}
}
