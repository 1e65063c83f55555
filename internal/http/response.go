package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"envelopes/internal/core"
	applog "envelopes/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeEngineError maps the domain error taxonomy onto HTTP statuses:
// invalid amounts are unprocessable, an overdraw is a conflict with current
// state, unknown (or foreign-owned) ids are not found, and store failures
// surface as a bad gateway since the store is an upstream dependency.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyOwner):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrStorage):
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Store failure",
			applog.FieldError, err.Error(),
			applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusBadGateway, "storage failure")
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Unhandled error",
			applog.FieldError, err.Error(),
			applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
