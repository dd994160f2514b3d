package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/corvidlabs/interviewsim/internal/observe"
)

// sessionIDHeader is the header every session-scoped endpoint accepts.
const sessionIDHeader = "X-Session-ID"

// writeJSON encodes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape returned for every non-2xx response.
type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeError writes a structured error response. code is a short machine
// classifier (e.g. "session_not_found"); message is human-readable.
func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, errorBody{Error: code, Message: message, CorrelationID: correlationID})
}

// requireSessionID extracts the X-Session-ID header, writing a 400
// InvalidInput response and returning ok=false when it is missing.
func requireSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(sessionIDHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "missing "+sessionIDHeader+" header", observe.CorrelationID(r.Context()))
		return "", false
	}
	return id, true
}
