package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes a JSON error body in the same {message} shape the handlers use.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
