package utils

import (
	"encoding/json"
	"net/http"

	"github.com/picvault/picvault/internal/logger"
	"go.uber.org/zap"
)

// WriteJSON writes a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// WriteDetail writes a JSON error response of the form {"detail": ...}
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"detail": detail,
	}); err != nil {
		logger.Error("Failed to encode error response", zap.Error(err))
	}
}
