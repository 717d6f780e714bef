package api

import "errors"

var (
	// ErrIncorrectPin is returned when the server rejects the submitted PIN.
	ErrIncorrectPin = errors.New("incorrect pin")
	// ErrUsernameTaken is returned when the requested username already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrUnavailable covers connectivity loss, timeouts and server outages.
	ErrUnavailable = errors.New("server unavailable")
)

// Server error codes the client cares about; everything else collapses to a
// generic wrapped error.
const (
	codeIncorrectPin  = "incorrect_code"
	codeUsernameTaken = "username_already_exists"
)
