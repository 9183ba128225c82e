package utils

import (
	"encoding/json"
	"net/http"
)

// Payload is the body of mutating endpoints. StatusCode mirrors the HTTP status and is
// omitted on plain success messages.
type Payload struct {
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

// DataPayload is the body of read endpoints. Data is always present, null when nothing was found.
type DataPayload struct {
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// JSONResponse sends a JSON response with the given status
func JSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
