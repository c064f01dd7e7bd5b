package api

import (
	"errors"
	"net/http"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ERROR MAPPING - leave error taxonomy to HTTP
// =============================================================================

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: StorageError also unwraps to its cause, so it goes last.
var errorMappings = []errorMapping{
	{leave.ErrInvalidDateRange, http.StatusBadRequest, "invalid_date_range"},
	{leave.ErrPastDateNotAllowed, http.StatusBadRequest, "past_date_not_allowed"},
	{leave.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{leave.ErrNotFound, http.StatusNotFound, "not_found"},
	{leave.ErrAlreadyDecided, http.StatusConflict, "already_decided"},
	{leave.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{leave.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{leave.ErrStorageFailure, http.StatusInternalServerError, "storage_failure"},
}

// statusFor returns the HTTP status and machine code for an engine error.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeDomainError surfaces the engine's message verbatim.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var ib *leave.InsufficientBalanceError
	if errors.As(err, &ib) {
		resp.Details = map[string]string{
			"available": ib.Available.String(),
			"requested": ib.Requested.String(),
		}
	}
	writeJSON(w, status, resp)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
