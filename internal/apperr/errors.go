package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so the transport layer can pick a response code.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindAuthorization   Kind = "authorization_error"
	KindUnauthenticated Kind = "unauthenticated"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindPersistence     Kind = "persistence_error"
)

// Error is a human readable message plus a machine checkable Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return newError(KindAuthorization, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return newError(KindUnauthenticated, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newError(KindInvalidState, format, args...)
}

// Persistence wraps a storage failure. Errors that already carry a Kind are
// returned unchanged so that a NotFound raised inside a transaction survives
// the rollback path.
func Persistence(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindPersistence for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindPersistence
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the user facing text of err without the wrapped cause.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
