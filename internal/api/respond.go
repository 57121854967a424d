package api

import (
	"encoding/json"
	"net/http"
	"time"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Status:    status,
		Message:   err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
