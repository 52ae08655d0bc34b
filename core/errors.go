package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn is returned by document operations without a session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrAlreadyLoggedIn is returned by Login and Register during a session.
	ErrAlreadyLoggedIn = errors.New("already logged in")
	// ErrContactNotFound indicates an unknown contact ID.
	ErrContactNotFound = errors.New("contact not found")
	// ErrContactExists indicates a contact with the same address already exists.
	ErrContactExists = errors.New("contact already exists")
)

// ValidationError reports caller input that was rejected before any
// document was touched.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
