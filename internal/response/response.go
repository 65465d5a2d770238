// Package response carries HTTP status codes alongside errors.
package response

import (
	"errors"
)

// Error is an error with the HTTP status it should be reported as.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

// Is matches another *Error with the same code and message.
func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Body is the JSON error body of every failed request.
type Body struct {
	Error string `json:"error"`
}
