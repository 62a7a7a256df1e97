package session

import "errors"

var (
	// ErrNotFound indicates the session does not exist
	ErrNotFound = errors.New("session not found")
	// ErrCodeTaken indicates the generated session code collided
	ErrCodeTaken = errors.New("session code already in use")
	// ErrInvalidTransition indicates the action is not legal from the
	// session's current status
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrUnknownAction indicates an unrecognized lifecycle action
	ErrUnknownAction = errors.New("unknown session action")
	// ErrMissingHostKey indicates the request carried no host key
	ErrMissingHostKey = errors.New("missing host key")
	// ErrHostKeyMismatch indicates the host key does not match the session
	ErrHostKeyMismatch = errors.New("host key does not match session")
)
