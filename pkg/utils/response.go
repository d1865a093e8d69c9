package utils

import (
	"encoding/json"
	"net/http"

	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
)

// RespondJSON writes payload as a JSON response.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := log.WithComponent("http")
		logger.Warn().Err(err).Msg("failed to encode response")
	}
}

// RespondError writes an error body.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}
