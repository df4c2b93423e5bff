package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the standard JSON response wrapper.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// errorEnvelope is the structured error body. Version-related errors
// carry the supported set so clients can self-correct.
type errorEnvelope struct {
	Success           bool     `json:"success"`
	ErrorCode         string   `json:"error_code"`
	Message           string   `json:"message"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
	DefaultVersion    string   `json:"default_version,omitempty"`
}

// Error codes used in errorEnvelope.ErrorCode.
const (
	CodeInvalidVersionFormat = "invalid_version_format"
	CodeUnsupportedVersion   = "unsupported_version"
	CodeNotFound             = "not_found"
	CodeInvalidState         = "invalid_state"
	CodeDuplicate            = "duplicate"
	CodeBadRequest           = "bad_request"
	CodeInternal             = "internal"
)

// WriteJSON writes a success response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// WriteError writes a structured error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{ErrorCode: code, Message: message})
}

// WriteVersionError writes a version-related error carrying the
// supported set and the default version.
func WriteVersionError(w http.ResponseWriter, status int, code, message string, supported []string, defaultVersion string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		ErrorCode:         code,
		Message:           message,
		SupportedVersions: supported,
		DefaultVersion:    defaultVersion,
	})
}
