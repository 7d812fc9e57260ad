package interview

import "errors"

// Sentinel errors for registry operations. The control plane maps these
// onto HTTP status codes.
var (
	// ErrNoTransport indicates a start was attempted before the browser
	// connected its WebSocket for the session id.
	ErrNoTransport = errors.New("interview: transport not established")

	// ErrSessionNotFound indicates no active session exists for the id.
	ErrSessionNotFound = errors.New("interview: session not found")

	// ErrSessionExists indicates a session is already active for the id.
	// Callers must cancel it before starting a new one.
	ErrSessionExists = errors.New("interview: session already active")
)
