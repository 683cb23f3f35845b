// Package dto defines the request and response shapes of the HTTP API.
package dto

// APIResponse is the envelope every endpoint answers with, success or not.
// Handlers fill Data on success and Error on failure, never both.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail carries the machine-readable error code alongside optional
// field-level details, e.g. validation failures keyed by field name.
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}
