package issues

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrValidation is malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrResolutionFailure means no jurisdiction could be assigned.
	ErrResolutionFailure = errors.New("no jurisdiction could be assigned")
	// ErrStateConflict is a transition the lifecycle does not allow,
	// including losing a concurrent race for the same transition.
	ErrStateConflict           = errors.New("state conflict")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrJurisdictionMismatch    = errors.New("jurisdiction does not own issue")
)

func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrResolutionFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrJurisdictionMismatch):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
