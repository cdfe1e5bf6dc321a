package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy recovered at the router boundary. Every one of these is
// converted to an error frame for the originating session only; none of
// them ever reaches fan-out or another session's connection.
var (
	ErrAuthenticationRequired = errors.New("Authentication required")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid call state transition")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrGroupCallFull          = errors.New("group call is full")
)

// ValidationError lists the missing or malformed fields of an inbound frame.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}

// PersistenceError wraps a failure of the persistence collaborator. It is
// reported to the originator and logged, never torn down over.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
