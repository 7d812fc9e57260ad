package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("conversation: API key is required")

	// ErrMissingAgentID indicates the agent ID was not provided.
	ErrMissingAgentID = errors.New("conversation: agent ID is required")

	// ErrNotConnected indicates the provider is not connected.
	ErrNotConnected = errors.New("conversation: not connected")

	// ErrAlreadyConnected indicates the provider is already connected.
	ErrAlreadyConnected = errors.New("conversation: already connected")

	// ErrConnectionClosed indicates the connection was closed unexpectedly.
	ErrConnectionClosed = errors.New("conversation: connection closed")

	// ErrInvalidMessage indicates a malformed message was received.
	ErrInvalidMessage = errors.New("conversation: invalid message")
)

// APIError represents an error event from the conversation API.
type APIError struct {
	// StatusCode is the HTTP status code (if applicable).
	StatusCode int

	// Code is the error code from the API.
	Code string

	// Message is the human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("conversation: API error [%s]: %s", e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("conversation: API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("conversation: API error: %s", e.Message)
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// ConnectionError wraps a transport-level failure.
type ConnectionError struct {
	// Op describes the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Retryable indicates whether retrying may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("conversation: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a ConnectionError.
func NewConnectionError(op string, err error, retryable bool) *ConnectionError {
	return &ConnectionError{Op: op, Err: err, Retryable: retryable}
}
