package downstream

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout      = errors.New("downstream_timeout")
	ErrUnavailable  = errors.New("downstream_unavailable")
	ErrNotFound     = errors.New("resource_not_found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrEmptyPayload = errors.New("response_missing_payload")
)

// StatusError is a non-2xx response without a usable message.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

// APIError is a response with success=false. Message comes from the server
// and is meant to be shown as is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error [%d]", e.StatusCode)
	}
	return fmt.Sprintf("api error [%d]: %s", e.StatusCode, e.Message)
}

func (e *APIError) UserMessage() string { return e.Message }
