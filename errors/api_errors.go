// Package errors defines the JSON error shape returned by the HTTP API.
package errors

import "fmt"

// APIError is the standardized error payload of the HTTP surface.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes returned by the API.
const (
	InvalidRequest       = "invalid_request"
	NotRegistered        = "not_registered"
	UpstreamUnauthorized = "upstream_unauthorized"
	UpstreamUnavailable  = "upstream_unavailable"
	ServerError          = "server_error"
)

// Common error constructors
func NewInvalidRequest(description string) *APIError {
	return &APIError{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewNotRegistered(description string) *APIError {
	return &APIError{
		Code:        NotRegistered,
		Description: description,
	}
}

func NewUpstreamUnauthorized(description string) *APIError {
	return &APIError{
		Code:        UpstreamUnauthorized,
		Description: description,
	}
}

func NewUpstreamUnavailable(description string) *APIError {
	return &APIError{
		Code:        UpstreamUnavailable,
		Description: description,
	}
}

func NewServerError(description string) *APIError {
	return &APIError{
		Code:        ServerError,
		Description: description,
	}
}
