// Package apperr is the typed error taxonomy shared by the services and the
// HTTP/socket transports. Every failure a caller can act on carries a Kind;
// anything else is an internal error.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindAlreadyBooked
	KindNotFound
	KindLocked
	KindInvalidState
	KindForbidden
	KindConflict
	KindEmptyQueue
	KindValidation
	KindUnauthorized
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindAlreadyBooked:
		return "already_booked"
	case KindNotFound:
		return "not_found"
	case KindLocked:
		return "locked"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindEmptyQueue:
		return "empty_queue"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindDuplicate:
		return "duplicate"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrConflict) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// Kind sentinels for errors.Is.
var (
	ErrAlreadyBooked = &Error{Kind: KindAlreadyBooked}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrLocked        = &Error{Kind: KindLocked}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrEmptyQueue    = &Error{Kind: KindEmptyQueue}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
	ErrDuplicate     = &Error{Kind: KindDuplicate}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func AlreadyBooked(message string) *Error { return New(KindAlreadyBooked, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Locked(message string) *Error        { return New(KindLocked, message) }
func InvalidState(message string) *Error  { return New(KindInvalidState, message) }
func Forbidden(message string) *Error     { return New(KindForbidden, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func EmptyQueue(message string) *Error    { return New(KindEmptyQueue, message) }
func Validation(message string) *Error    { return New(KindValidation, message) }
func Unauthorized(message string) *Error  { return New(KindUnauthorized, message) }
func Duplicate(message string) *Error     { return New(KindDuplicate, message) }

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller lost an optimistic-concurrency race
// and may resend the same request.
func Retryable(err error) bool {
	return Is(err, KindConflict)
}

// Message returns the user-facing text, hiding internal details.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAlreadyBooked, KindConflict, KindLocked, KindDuplicate:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindEmptyQueue, KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
