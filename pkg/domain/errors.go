package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists.
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails.
	ErrValidation = errors.New("validation error")
	// ErrPermissionDenied is returned when an operation requires an opt-in the
	// owner has not enabled, e.g. community contribution without participation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthorized is returned when a caller carries no valid identity.
	ErrUnauthorized = errors.New("unauthorized")
)
