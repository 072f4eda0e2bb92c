package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidOutcome is returned when a review outcome is not valid.
	ErrInvalidOutcome = errors.New("invalid review outcome")

	// ErrInvalidStatus is returned when a status filter value is not valid.
	ErrInvalidStatus = errors.New("invalid status")
)
