package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// WriteStoreError reports a store failure: 503 while the store is
// unreachable, 422 for rejected data, 500 otherwise.
func WriteStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case types.IsValidationFailure(err):
		status = http.StatusUnprocessableEntity
	}
	WriteError(w, status, err.Error())
}
