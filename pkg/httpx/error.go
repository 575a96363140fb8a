// Package httpx holds the JSON request/response helpers shared by all
// handlers. Errors use one envelope shape:
// {"error": {"code":"user.not_found","message":"..."}}
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

type ErrorPayload struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int    `json:"retryAfterSec,omitempty"`
	Details       any    `json:"details,omitempty"`
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error envelope with the status text as code.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, statusCode, ErrorPayload{Code: http.StatusText(statusCode), Message: message})
}

// WriteTypedError writes an error envelope with a stable dotted code and
// optional retryAfterSec.
func WriteTypedError(w http.ResponseWriter, statusCode int, code, message string, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	writeEnvelope(w, statusCode, ErrorPayload{Code: code, Message: message, RetryAfterSec: retryAfter})
}

// WriteErrorWithDetails writes an error envelope carrying a details map.
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]any) {
	writeEnvelope(w, statusCode, ErrorPayload{Code: code, Message: message, Details: details})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, p ErrorPayload) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": p})
}

const maxBodyBytes = 1 << 20

// DecodeJSON decodes a request body into v, capping the body at 1 MiB and
// rejecting trailing data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}
