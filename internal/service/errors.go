package service

import (
	"errors"
	"fmt"

	"bmr/internal/repository"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("permission denied")
	// ErrPaymentCreation and ErrStatusCheck hide provider details from callers;
	// the provider error is logged where it happens.
	ErrPaymentCreation = errors.New("unable to create payment request")
	ErrStatusCheck     = errors.New("unable to check payment status")
)

// ValidationError is a client error tied to one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func errNotEditable() error {
	return NewValidationError("workflow_status", "Application cannot be modified at this stage")
}

// notFound wraps a repository miss as ErrNotFound and passes other errors through.
func notFound(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
