package participant

import "errors"

var (
	// ErrNotFound indicates the participant does not exist
	ErrNotFound = errors.New("participant not found")
	// ErrInvalidToken indicates the participant token matched no row
	ErrInvalidToken = errors.New("invalid participant token")
	// ErrSessionClosed indicates the session no longer accepts joins
	ErrSessionClosed = errors.New("session is no longer active")
	// ErrSessionLocked indicates the session is locked for new joins
	ErrSessionLocked = errors.New("session is locked")
	// ErrModerated indicates the participant was kicked or blocked
	ErrModerated = errors.New("participant was removed from the session")
	// ErrUnknownAction indicates an unrecognized moderation action
	ErrUnknownAction = errors.New("unknown participant action")
)
