package apierr

import "fmt"

// Error carries the HTTP status and a stable machine-readable code
// alongside the underlying error.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
