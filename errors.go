package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// The closed set of failures the service surfaces. Handlers map these to HTTP
// status codes; anything outside the set becomes a sanitized 500.
var (
	// ErrInvalidCredentials covers unknown user, wrong password and disabled
	// accounts alike, so responses cannot be used to enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidTOTP        = errors.New("invalid 2FA code")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWrongTokenType     = errors.New("invalid token type")
	ErrMissingAuthHeader  = errors.New("missing or malformed authorization header")
	ErrMissingFields      = errors.New("missing required fields")
	ErrPasswordTooShort   = errors.New("new password must be at least 8 characters long")
)

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{
		Code:    code,
		Message: message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// writeAuthError maps an orchestrator failure to its HTTP shape. Internal
// detail is logged server-side only; the client sees one of the fixed kinds.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", ErrInvalidCredentials.Error())
	case errors.Is(err, ErrInvalidTOTP):
		writeError(w, http.StatusUnauthorized, "INVALID_TOTP", ErrInvalidTOTP.Error())
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrWrongTokenType), errors.Is(err, ErrMissingAuthHeader):
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
	case errors.Is(err, ErrMissingFields):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", ErrMissingFields.Error())
	case errors.Is(err, ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", ErrPasswordTooShort.Error())
	default:
		log.Printf("unexpected auth error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}
