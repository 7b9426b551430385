// Package respond writes JSON response bodies.
//
// Every error body has the shape {"error": "<message>"} so callers can rely
// on a single field regardless of the endpoint.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the body of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} with the given status.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}
