package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones with custom
// messages still match their predefined kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrRateLimited  = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
)

// Token errors. TOKEN_EXPIRED tells clients to try the refresh flow; every
// other token code means a full re-login.
var (
	ErrTokenMalformed    = New("TOKEN_MALFORMED", http.StatusUnauthorized, "token is malformed")
	ErrTokenAlgorithm    = New("TOKEN_ALGORITHM", http.StatusUnauthorized, "token algorithm is not accepted")
	ErrTokenSignature    = New("TOKEN_SIGNATURE", http.StatusUnauthorized, "token signature is invalid")
	ErrTokenIssuer       = New("TOKEN_ISSUER", http.StatusUnauthorized, "token issuer is not trusted")
	ErrTokenExpired      = New("TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired")
	ErrTokenNotYetValid  = New("TOKEN_NOT_YET_VALID", http.StatusUnauthorized, "token is not valid yet")
	ErrTokenClaimMissing = New("TOKEN_CLAIM_MISSING", http.StatusUnauthorized, "token is missing a required claim")
)

// Session and account errors.
var (
	ErrNoActiveSession      = New("NO_ACTIVE_SESSION", http.StatusNotFound, "no active session")
	ErrAlreadyLoggedOut     = New("ALREADY_LOGGED_OUT", http.StatusConflict, "session already logged out")
	ErrRefreshTokenNotFound = New("REFRESH_TOKEN_NOT_FOUND", http.StatusUnauthorized, "refresh token not found")
	ErrRefreshTokenExpired  = New("REFRESH_TOKEN_EXPIRED", http.StatusUnauthorized, "refresh token has expired")
	ErrUserNotFound         = New("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrDuplicateEmail       = New("DUPLICATE_EMAIL", http.StatusConflict, "email already registered")
	ErrInvalidCredentials   = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount      = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrForbiddenRole        = New("FORBIDDEN_ROLE", http.StatusForbidden, "role is not allowed")
	ErrTooManyLoginAttempts = New("TOO_MANY_ATTEMPTS", http.StatusTooManyRequests, "too many failed login attempts")
	ErrStoreServiceFailure  = New("STORE_SERVICE_ERROR", http.StatusBadGateway, "store service request failed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Clonef is Clone with a formatted message.
func Clonef(err *Error, format string, args ...interface{}) *Error {
	return Clone(err, fmt.Sprintf(format, args...))
}
