// Package forward implements the forwarding engine: it resolves a
// route key, relays the inbound request to the destination preserving
// method, headers and raw body bytes, streams the response back, and
// records one history entry per downstream attempt.
package forward

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Rejection reasons, used as error codes in caller-facing JSON bodies
// and as metric status labels.
const (
	reasonUnknownKey            = "unknown_key"
	reasonDestinationNotAllowed = "destination_not_allowed"
	reasonInvalidBody           = "invalid_body"
	reasonBadGateway            = "bad_gateway"
)

// Sentinel errors for forwarding operations.
var (
	// ErrUnknownKey indicates that no route exists for the key.
	ErrUnknownKey = errors.New("no route for key")

	// ErrDestinationNotAllowed indicates an allowlist rejection.
	ErrDestinationNotAllowed = errors.New("destination host not allowed")

	// ErrInvalidBody indicates the request body could not be read.
	ErrInvalidBody = errors.New("request body could not be read")
)

// errorBody is the caller-facing JSON error shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: message})
}
