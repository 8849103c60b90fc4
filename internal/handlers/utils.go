package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are only logged; the status line has already been sent.
func writeJSON(w http.ResponseWriter, log zerolog.Logger, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, log zerolog.Logger, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, log, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, log zerolog.Logger, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, log, map[string]string{"status": status})
}
