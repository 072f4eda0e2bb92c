package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned by Engine.Start when the user already has an
	// active session. It must be completed or terminated first.
	ErrSessionActive = errors.New("a review session is already active for this user")

	// ErrNoActiveSession is returned by Engine calls that need an active session.
	ErrNoActiveSession = errors.New("no active review session for this user")
)

// ProtocolError reports a transition attempted from a state that does not allow it.
// Session methods panic with it; it is never returned as a business error.
type ProtocolError struct {
	Op    string
	State State
}

// Error implements the error interface for ProtocolError.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("session protocol violation: %s called in state %s", e.Op, e.State)
}

// EngineError wraps failures of the engine's collaborators with the operation
// that failed.
type EngineError struct {
	// Operation is the operation that failed (e.g., "start", "overview")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for EngineError.
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *EngineError) Unwrap() error {
	return e.Err
}
