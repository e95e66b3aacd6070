// Package errors defines the error kinds surfaced by the service layer.
//
// Repositories return plain sentinel errors; services translate them into
// *Error values so handlers can map a failure to a response code without
// inspecting driver errors.
package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindUnauthorized Kind = "unauthorized"
	KindStore        Kind = "store_error"
)

// storeMessage is the only text a caller ever sees for a storage failure.
const storeMessage = "internal storage error"

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindStore {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same kind and message, so
// sentinels below can be matched with errors.Is after being wrapped.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrGameNotFound       = &Error{Kind: KindNotFound, Message: "game not found"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Message: "user not found"}
	ErrGameNotActive      = &Error{Kind: KindInvalidState, Message: "game is not active"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "invalid username or password"}
	ErrWrongPassword      = &Error{Kind: KindUnauthorized, Message: "current password is incorrect"}
	ErrCredentialChanged  = &Error{Kind: KindInvalidState, Message: "credential changed concurrently, retry"}
	ErrSettlementBusy     = &Error{Kind: KindStore, Message: "settlement in progress, retry later"}
)

func InvalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a storage failure. The cause stays reachable through Unwrap for
// logging but is never part of Error().
func Store(err error) *Error {
	return &Error{Kind: KindStore, Message: storeMessage, Err: err}
}

// KindOf returns the kind carried by err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		if e.Kind == KindStore {
			return e.Message
		}
		return e.Error()
	}
	return storeMessage
}
