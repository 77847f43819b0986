package server

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON envelope for middleware rejections.
type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// toolErrorBody is the JSON envelope for tool dispatch failures.
type toolErrorBody struct {
	Error     bool   `json:"error"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

func writeToolError(w http.ResponseWriter, status int, operation, message string) {
	writeJSON(w, status, toolErrorBody{Error: true, Operation: operation, Message: message})
}
