// Package shared centralizes HTTP response encoding so all handlers emit
// consistent JSON envelopes.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "contactlink/pkg/domain-errors"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP status and a
// caller-safe JSON error body. Internal detail never leaks: only the coded
// error's message is emitted.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.StatusOf(err), map[string]string{
		"error": dErrors.Message(err),
	})
}
