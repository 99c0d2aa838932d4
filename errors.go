package beacon

import "github.com/xraph/beacon/internal/errs"

// Sentinel errors returned by Beacon operations. Store implementations
// return these (wrapped or bare) so callers can test with errors.Is.
var (
	// ErrNoStore is returned when a Beacon is created without a store.
	ErrNoStore = errs.ErrNoStore

	// ErrEndpointNotFound is returned when a delivery target cannot be found.
	ErrEndpointNotFound = errs.ErrEndpointNotFound

	// ErrEndpointInUse is returned when deleting a target that still has
	// pending, processing or retrying deliveries.
	ErrEndpointInUse = errs.ErrEndpointInUse

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errs.ErrEventNotFound

	// ErrDuplicateEvent is returned by stores when an event with the same
	// idempotency key already exists.
	ErrDuplicateEvent = errs.ErrDuplicateEvent

	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = errs.ErrDeliveryNotFound

	// ErrDeliveryNotFailed is returned when redelivering a delivery that has
	// not reached the terminal failed state.
	ErrDeliveryNotFailed = errs.ErrDeliveryNotFailed

	// ErrWorkflowNotFound is returned when a workflow cannot be found.
	ErrWorkflowNotFound = errs.ErrWorkflowNotFound

	// ErrWorkflowNotActive is returned when triggering a workflow whose
	// status does not accept new runs.
	ErrWorkflowNotActive = errs.ErrWorkflowNotActive

	// ErrInvalidTransition is returned for a workflow status change the
	// lifecycle does not allow.
	ErrInvalidTransition = errs.ErrInvalidTransition

	// ErrRunNotFound is returned when a run cannot be found.
	ErrRunNotFound = errs.ErrRunNotFound

	// ErrRunNotActive is returned when a run already reached a terminal status.
	ErrRunNotActive = errs.ErrRunNotActive

	// ErrSubjectNotFound is returned when a subject cannot be found.
	ErrSubjectNotFound = errs.ErrSubjectNotFound

	// ErrUnknownAction is returned when a step names an action kind with no
	// registered handler.
	ErrUnknownAction = errs.ErrUnknownAction

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errs.ErrStoreClosed

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errs.ErrMigrationFailed
)

// ValidationError describes a rejected endpoint or workflow definition.
// It is returned at creation time, before any delivery or run exists.
type ValidationError = errs.ValidationError

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool { return errs.IsValidation(err) }
