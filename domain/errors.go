package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared by the client layers.
type ErrorCode string

const (
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeInvalid        ErrorCode = "INVALID"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeBadCredentials ErrorCode = "BAD_CREDENTIALS"
	ErrCodeCookieBlocked  ErrorCode = "COOKIE_BLOCKED"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"
	ErrCodeInternal       ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrKeyNotFound     = NewError(ErrCodeNotFound, "storage key not found")
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrBadCredentials  = NewError(ErrCodeBadCredentials, "invalid username/email or password")
	ErrInvalidPayload  = NewError(ErrCodeInvalid, "invalid request: check the submitted fields")
	ErrCookieBlocked   = NewError(ErrCodeCookieBlocked, "authentication verification failed - likely a cookie-blocking browser; allow cookies for this site or disable strict tracking protection")
	ErrRateLimited     = NewError(ErrCodeRateLimited, "too many requests")
	ErrBackendDown     = NewError(ErrCodeUnavailable, "backend unavailable")
	ErrStorageDisabled = NewError(ErrCodeUnavailable, "local storage is not available")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// Message returns the user-facing message of a domain error, or a generic
// message for anything else.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var dErr *Error
	if errors.As(err, &dErr) && dErr.Message != "" {
		return dErr.Message
	}
	return "unexpected error"
}
