package service

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

type ErrorKind int

const (
	ErrInvalidInput ErrorKind = iota
	ErrUnauthorized
	ErrProviderTransient
	ErrProviderFailure
	ErrTimeout
	ErrCacheUnavailable
	ErrInternal
)

// String returns the machine name used in API responses.
func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidInput:
		return "invalid_input"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrProviderTransient:
		return "provider_transient"
	case ErrProviderFailure:
		return "provider_failure"
	case ErrTimeout:
		return "timeout"
	case ErrCacheUnavailable:
		return "cache_unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to a response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrProviderTransient:
		return http.StatusServiceUnavailable
	case ErrProviderFailure:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for _, k := range slices.Sorted(maps.Keys(e.Context)) {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// KindOf returns the kind of the first *Error in err's chain. Anything else
// is internal.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ErrInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}

func IsErrorKind(err error, kind ErrorKind) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind == kind
	}
	return false
}

func WrapError(err error, kind ErrorKind, message string) *Error {
	return NewErrorWithCause(kind, message, err)
}

// SafeExecute turns a panic in fn into an internal error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrInternal, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
