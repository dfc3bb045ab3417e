// Package handlers provides JSON response helpers shared by HTTP handlers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RespondJSON writes data as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs err and writes {"error": "..."} with the given status code.
// Internal server errors are logged in full but reported with a generic message.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	msg := err.Error()

	switch {
	case status == http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "error", err)
		msg = http.StatusText(status)
	case status > http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "error", err)
	default:
		logger.Warn("request rejected", "status", status, "error", err)
	}

	RespondJSON(w, status, map[string]string{"error": msg})
}
