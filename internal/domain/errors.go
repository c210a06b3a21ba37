package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can pick a reply or an HTTP status
// without matching on message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidInput
	KindPermissionDenied
	KindConflict
	KindSafetyViolation
	KindExternalServiceFailure
	KindStateInconsistency
)

var kindCodes = map[Kind]string{
	KindUnknown:                "unknown",
	KindNotFound:               "not_found",
	KindInvalidInput:           "invalid_input",
	KindPermissionDenied:       "permission_denied",
	KindConflict:               "conflict",
	KindSafetyViolation:        "safety_violation",
	KindExternalServiceFailure: "external_failure",
	KindStateInconsistency:     "state_inconsistency",
}

func (k Kind) String() string {
	if s, ok := kindCodes[k]; ok {
		return s
	}
	return kindCodes[KindUnknown]
}

// Error is the error type returned by every service in the module.
// Message is safe to show to an end user; the cause is not.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

// Sentinels for errors.Is checks by kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrSafetyViolation   = &Error{Kind: KindSafetyViolation}
	ErrExternalFailure   = &Error{Kind: KindExternalServiceFailure}
	ErrStateInconsistent = &Error{Kind: KindStateInconsistency}
)

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.cause != nil:
		return e.msg + ": " + e.cause.Error()
	case e.msg != "":
		return e.msg
	case e.cause != nil:
		return e.Kind.String() + ": " + e.cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches a sentinel with the same kind and no message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.msg == "" && t.cause == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// Code is picked up by the router's error code derivation.
func (e *Error) Code() string { return e.Kind.String() }

// Message returns the user facing part without the cause.
func (e *Error) Message() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return e.msg
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to cause. A nil cause yields nil.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func NotFound(format string, args ...any) *Error {
	return Errorf(KindNotFound, format, args...)
}

func InvalidInput(format string, args ...any) *Error {
	return Errorf(KindInvalidInput, format, args...)
}

func PermissionDenied(format string, args ...any) *Error {
	return Errorf(KindPermissionDenied, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return Errorf(KindConflict, format, args...)
}

func SafetyViolation(format string, args ...any) *Error {
	return Errorf(KindSafetyViolation, format, args...)
}

func StateInconsistency(format string, args ...any) *Error {
	return Errorf(KindStateInconsistency, format, args...)
}

// External wraps an infrastructure failure (store, gateway, transport).
func External(cause error, format string, args ...any) error {
	return Wrap(KindExternalServiceFailure, cause, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the message of the first *Error in err's chain, or fallback.
func UserMessage(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && de.msg != "" && de.Kind != KindExternalServiceFailure {
		return de.msg
	}
	return fallback
}
