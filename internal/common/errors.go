// Package common defines shared constants and error kinds used across the
// doctree server. Callers should use errors.Is to match the sentinel values.
package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindStoreFailure
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindStoreFailure:
		return "store failure"
	case KindInvalid:
		return "invalid"
	default:
		return "internal error"
	}
}

// Error is a tagged error. Two *Error values match under errors.Is when
// their kinds are equal, so the sentinels below match any error of the
// same kind regardless of message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// Repository-level errors.
	ErrorNotFound = &Error{Kind: KindNotFound}
	ErrorConflict = &Error{Kind: KindConflict}

	// Service-level errors.
	ErrorInternal        = &Error{Kind: KindInternal}
	ErrorUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrorStoreFailure    = &Error{Kind: KindStoreFailure}
	ErrorInvalid         = &Error{Kind: KindInvalid}
	ErrDirectoryNotEmpty = &Error{Kind: KindConflict, Msg: "directory not empty"}

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newError(KindUnauthorized, format, args...)
}

func Invalid(format string, args ...any) error {
	return newError(KindInvalid, format, args...)
}

// StoreFailure wraps a blob store error.
func StoreFailure(err error, format string, args ...any) error {
	return &Error{Kind: KindStoreFailure, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
