package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"ai-trading-agent/internal/engine"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/market"
	"ai-trading-agent/internal/storage"
)

// errorBody is the JSON error shape: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Detail: msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, market.ErrSymbolNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInsufficientFunds), errors.Is(err, storage.ErrInsufficientShares):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrAlreadyRunning), errors.Is(err, engine.ErrNotRunning), errors.Is(err, engine.ErrRunning):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorWithErr(r.Context(), "Request failed", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
