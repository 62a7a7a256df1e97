package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	// HeaderParticipantToken authenticates anonymous participant requests
	HeaderParticipantToken = "x-participant-token"
	// HeaderHostKey authenticates host requests for a session
	HeaderHostKey = "x-host-key"
)

// RequestBody decodes the JSON request body into T
func RequestBody[T any](r *http.Request) (T, error) {
	var request T
	err := json.NewDecoder(r.Body).Decode(&request)
	return request, err
}

// WriteJSON writes body as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// WriteError maps err to a JSON error response. Domain errors carry their
// own status; anything else becomes a generic 500 and is logged with
// context server-side.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		WriteJSON(w, apiErr.Status, apiErr)
		return
	}

	log.Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	WriteJSON(w, 500, &Error{Message: "internal server error"})
}

// ParticipantToken extracts the participant bearer token from the request
func ParticipantToken(r *http.Request) string {
	return r.Header.Get(HeaderParticipantToken)
}

// HostKey extracts the host capability key from the request
func HostKey(r *http.Request) string {
	return r.Header.Get(HeaderHostKey)
}
