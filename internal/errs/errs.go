// Package errs holds the sentinel errors and the validation error type
// shared by every Beacon package. The root beacon package re-exports them;
// callers outside the module should use those names.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNoStore           = errors.New("beacon: store is required")
	ErrEndpointNotFound  = errors.New("beacon: endpoint not found")
	ErrEndpointInUse     = errors.New("beacon: endpoint has open deliveries")
	ErrEventNotFound     = errors.New("beacon: event not found")
	ErrDuplicateEvent    = errors.New("beacon: duplicate idempotency key")
	ErrDeliveryNotFound  = errors.New("beacon: delivery not found")
	ErrDeliveryNotFailed = errors.New("beacon: delivery is not failed")
	ErrWorkflowNotFound  = errors.New("beacon: workflow not found")
	ErrWorkflowNotActive = errors.New("beacon: workflow is not active")
	ErrInvalidTransition = errors.New("beacon: invalid status transition")
	ErrRunNotFound       = errors.New("beacon: run not found")
	ErrRunNotActive      = errors.New("beacon: run is not active")
	ErrSubjectNotFound   = errors.New("beacon: subject not found")
	ErrUnknownAction     = errors.New("beacon: unknown action kind")
	ErrStoreClosed       = errors.New("beacon: store is closed")
	ErrMigrationFailed   = errors.New("beacon: migration failed")
)

// ValidationError describes a rejected endpoint or workflow definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "beacon: invalid input: " + e.Message
	}
	return fmt.Sprintf("beacon: invalid %s: %s", e.Field, e.Message)
}

// Invalid builds a *ValidationError with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
