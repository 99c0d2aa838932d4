package api

import (
	"errors"
	"net/http"

	"github.com/xraph/beacon"
)

// statusOf maps Beacon errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case beacon.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, beacon.ErrEndpointNotFound),
		errors.Is(err, beacon.ErrEventNotFound),
		errors.Is(err, beacon.ErrDeliveryNotFound),
		errors.Is(err, beacon.ErrWorkflowNotFound),
		errors.Is(err, beacon.ErrRunNotFound),
		errors.Is(err, beacon.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, beacon.ErrEndpointInUse),
		errors.Is(err, beacon.ErrDuplicateEvent),
		errors.Is(err, beacon.ErrDeliveryNotFailed),
		errors.Is(err, beacon.ErrWorkflowNotActive),
		errors.Is(err, beacon.ErrInvalidTransition),
		errors.Is(err, beacon.ErrRunNotActive):
		return http.StatusConflict
	case errors.Is(err, beacon.ErrUnknownAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
