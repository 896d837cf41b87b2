// Package httpapi serves the product catalog views over HTTP and websocket.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/fairyhunter13/product-catalog-store/internal/obs"
)

type jsonError struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes {error, details, request_id}. The request id is
// taken from the response header WithRequestID sets.
func WriteJSONError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, jsonError{
		Error:     code,
		Details:   details,
		RequestID: w.Header().Get(obs.RequestIDHeader),
	})
}
