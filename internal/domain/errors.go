package domain

import "errors"

// Error kinds surfaced to callers. Wrap them with fmt.Errorf("...: %w") and branch with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrValidation          = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrent modification, retry")
)
