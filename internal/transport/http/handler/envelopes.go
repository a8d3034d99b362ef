package handler

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoginEnvelope wraps a successful login.
type LoginEnvelope struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// SessionEnvelope describes the caller's bearer token.
type SessionEnvelope struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// ChatEnvelope is the chat relay's response; it reports failures under "error".
type ChatEnvelope struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HealthEnvelope reports the status of each dependency check.
type HealthEnvelope struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
