package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"
)

// successEnvelope is the wire shape of every successful response.
type successEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// errorEnvelope is the wire shape of every failure response. Details
// carries per-field violation text under details.message — one string
// or an array of strings.
type errorEnvelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ErrorCode  string `json:"errorCode"`
	StatusCode int    `json:"statusCode"`
	Path       string `json:"path"`
	Timestamp  string `json:"timestamp"`
	Details    any    `json:"details,omitempty"`
}

func writeData(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeJSON(w, status, successEnvelope{
		Success:   true,
		Message:   message,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, detailMessages ...string) {
	env := errorEnvelope{
		Success:    false,
		Message:    message,
		ErrorCode:  code,
		StatusCode: status,
		Path:       r.URL.Path,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	switch len(detailMessages) {
	case 0:
	case 1:
		env.Details = map[string]any{"message": detailMessages[0]}
	default:
		env.Details = map[string]any{"message": detailMessages}
	}
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// parseExpectedRevision reads the expectedRevision query parameter
// required on every entity mutation.
func parseExpectedRevision(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("expectedRevision")
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REVISION", "expectedRevision query parameter is required")
		return 0, false
	}
	return rev, true
}
