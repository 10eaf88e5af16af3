package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Store level sentinels. Stores return them (possibly wrapped); services
// translate them into a kinded *Error before anything reaches the caller.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrInternalServer    = errors.New("internal server error")

	ErrConfigFileReadFailed = errors.New("failed to read config file")
	ErrConfigParseFailed    = errors.New("failed to parse config file")
	ErrConfigInvalidFormat  = errors.New("invalid value format")
)

type Kind string

const (
	KindUnauthorized       Kind = "Unauthorized"
	KindValidation         Kind = "ValidationError"
	KindNotFound           Kind = "NotFound"
	KindStore              Kind = "StoreError"
	KindInvalidCredentials Kind = "InvalidCredentials"
	KindMethodNotAllowed   Kind = "MethodNotAllowed"
)

// Error is the failure shape shared by the service, the HTTP API and the client.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Validation(message string) *Error { return New(KindValidation, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func MethodNotAllowed(message string) *Error { return New(KindMethodNotAllowed, message) }

func InvalidCredentials() *Error { return New(KindInvalidCredentials, "Invalid credentials") }

// Store hides err behind a safe message; the cause stays reachable via Unwrap
// for logging only.
func Store(message string, err error) *Error { return Wrap(KindStore, message, err) }

// As reports whether err carries an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindStore for anything unclassified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindStore
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	if e, ok := As(err); ok {
		return e.Message
	}
	return ErrInternalServer.Error()
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthorized, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Is mirrors the standard errors.Is for callers importing this package as errors.
func Is(err, target error) bool { return errors.Is(err, target) }
