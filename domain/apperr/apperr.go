// Package apperr は問い合わせ処理で呼び出し側に返すエラーの分類を提供する
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error class.
type Kind string

const (
	KindUnknown        Kind = "UNKNOWN"
	KindNotFound       Kind = "NOT_FOUND"
	KindForbidden      Kind = "FORBIDDEN"
	KindInvalidRequest Kind = "INVALID_REQUEST"
	KindAlreadyExists  Kind = "ALREADY_EXISTS"
)

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

// Is matches another *Error of the same kind and message, so package level
// sentinels work with errors.Is after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return Newf(KindForbidden, format, args...)
}

func InvalidRequest(format string, args ...any) *Error {
	return Newf(KindInvalidRequest, format, args...)
}

func AlreadyExists(format string, args ...any) *Error {
	return Newf(KindAlreadyExists, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the handler responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to the caller.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
