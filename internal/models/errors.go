package models

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrPersistence        = errors.New("persistence error")
	ErrNotFound           = errors.New("not found")
	ErrMalformedURL       = errors.New("malformed url")
)

// ValidationError rejects a single request field before any side effect happens.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
