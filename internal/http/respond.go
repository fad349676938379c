package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"persacc/internal/core"
	applog "persacc/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP statuses. Closed-period and
// ordering violations are conflicts, not client formatting errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, core.ErrPeriodClosed):
		status, code = http.StatusConflict, "period_closed"
	case errors.Is(err, core.ErrAlreadyClosed):
		status, code = http.StatusConflict, "already_closed"
	case errors.Is(err, core.ErrOutOfOrder):
		status, code = http.StatusConflict, "out_of_order"
	case errors.Is(err, core.ErrNoOpenPeriod):
		status, code = http.StatusNotFound, "no_open_period"
	case errors.Is(err, core.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrConfigUnavailable):
		status, code = http.StatusServiceUnavailable, "config_unavailable"
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidMovement),
		errors.Is(err, core.ErrInvalidRelevance),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrEmptyConcept),
		errors.Is(err, core.ErrEmptyName):
		status, code = http.StatusUnprocessableEntity, "validation"
	}

	logger := applog.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path, applog.FieldError, err)
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, status, applog.FieldError, err)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: "bad_request"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
