package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across agentforum.
type ErrorCode string

// Directive and registry error codes
const (
	ErrParseError               ErrorCode = "PARSE_ERROR"
	ErrInvalidArgument          ErrorCode = "INVALID_ARGUMENT"
	ErrMissingArgument          ErrorCode = "MISSING_ARGUMENT"
	ErrParticipantLimitExceeded ErrorCode = "PARTICIPANT_LIMIT_EXCEEDED"
	ErrDuplicateLabel           ErrorCode = "DUPLICATE_LABEL"
	ErrParticipantNotFound      ErrorCode = "PARTICIPANT_NOT_FOUND"
	ErrNoEligibleModel          ErrorCode = "NO_ELIGIBLE_MODEL"
	ErrFeatureDisabled          ErrorCode = "feature_disabled"
	ErrDirectivePanic           ErrorCode = "DIRECTIVE_PANIC"
)

// Turn and conversation error codes
const (
	ErrEmptyResponse ErrorCode = "EMPTY_RESPONSE"
	ErrInvalidState  ErrorCode = "INVALID_STATE"
)

// Gateway error codes
const (
	ErrNetwork             ErrorCode = "NETWORK_ERROR"
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrAuthentication      ErrorCode = "AUTHENTICATION"
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrModelNotFound       ErrorCode = "MODEL_NOT_FOUND"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// Scenario error codes
const (
	ErrScenarioInvalid  ErrorCode = "SCENARIO_INVALID"
	ErrScenarioNotFound ErrorCode = "SCENARIO_NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps cause with the given code. A nil cause yields nil.
func WrapError(cause error, code ErrorCode, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
