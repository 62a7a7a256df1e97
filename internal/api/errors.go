package api

import "fmt"

// Error is a domain error that carries the HTTP status it should map to.
// Route handlers convert every returned error into a JSON error response;
// errors without a status collapse into a generic 500.
type Error struct {
	Status  int      `json:"-"`
	Message string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func BadRequest(message string, details ...string) *Error {
	return &Error{Status: 400, Message: message, Details: details}
}

func Unauthorized(message string) *Error {
	return NewError(401, message)
}

func Forbidden(message string) *Error {
	return NewError(403, message)
}

func NotFound(message string) *Error {
	return NewError(404, message)
}

func Conflict(message string) *Error {
	return NewError(409, message)
}
