package decision

import "errors"

var (
	// ErrNotFound indicates the decision does not exist
	ErrNotFound = errors.New("decision not found")
	// ErrInvalidTransition indicates the action is not legal from the
	// decision's current status
	ErrInvalidTransition = errors.New("invalid decision transition")
	// ErrUnknownAction indicates an unrecognized decision action
	ErrUnknownAction = errors.New("unknown decision action")
	// ErrLockedForUpdate indicates the decision can no longer be edited
	ErrLockedForUpdate = errors.New("revealed decisions cannot be updated")
	// ErrValidation indicates a malformed create/update payload
	ErrValidation = errors.New("decision validation failed")
)
