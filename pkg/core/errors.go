package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the error type returned by every core component.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil && msg == "" {
		msg = e.Cause.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error of the same type, so that
// errors.Is(err, &core.Error{Type: core.ErrTransport}) matches any transport error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrCredentialMissing     ErrorType = "credential_missing"
	ErrTransport             ErrorType = "transport_error"
	ErrUpstreamRejected      ErrorType = "upstream_rejected"
	ErrNoResultProduced      ErrorType = "no_result_produced"
	ErrPermissionDenied      ErrorType = "permission_denied"
	ErrCapabilityUnavailable ErrorType = "capability_unavailable"
	ErrInvalidRequest        ErrorType = "invalid_request"
)

// NewCredentialMissingError is returned at first use of a capability when no
// API key was configured.
func NewCredentialMissingError(message string) *Error {
	return &Error{Type: ErrCredentialMissing, Message: message}
}

// NewTransportError wraps a network or stream failure.
func NewTransportError(message string, cause error) *Error {
	return &Error{Type: ErrTransport, Message: message, Cause: cause}
}

// NewUpstreamRejectedError wraps a service-level rejection.
func NewUpstreamRejectedError(message, code string, cause error) *Error {
	return &Error{Type: ErrUpstreamRejected, Message: message, Code: code, Cause: cause}
}

// NewNoResultError reports a job or generation that completed without output.
func NewNoResultError(message string) *Error {
	return &Error{Type: ErrNoResultProduced, Message: message}
}

// NewPermissionDeniedError reports a refused device or resource.
func NewPermissionDeniedError(message string, cause error) *Error {
	return &Error{Type: ErrPermissionDenied, Message: message, Cause: cause}
}

// NewCapabilityUnavailableError reports a feature that cannot be used at all.
func NewCapabilityUnavailableError(message string, cause error) *Error {
	return &Error{Type: ErrCapabilityUnavailable, Message: message, Cause: cause}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// TypeOf returns the ErrorType of err, or "" when err is not a *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Type
	}
	return ""
}

// IsType reports whether err (or anything it wraps) is a *Error of type t.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// invalidCredentialPatterns match service messages that mean the configured
// key was refused.
var invalidCredentialPatterns = []string{
	"api key not valid",
	"api_key_invalid",
	"invalid api key",
	"permission denied",
	"unauthenticated",
	"requested entity was not found",
}

// LooksLikeInvalidCredential reports whether a service error message matches
// one of the known invalid-credential patterns.
func LooksLikeInvalidCredential(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range invalidCredentialPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// UserMessage maps an error to the short text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return "Something went wrong. Please try again."
	}
	switch e.Type {
	case ErrCredentialMissing:
		return "No API key is configured. Set GEMINI_API_KEY and restart."
	case ErrUpstreamRejected:
		if LooksLikeInvalidCredential(e.Error()) {
			return "The API key was rejected. Check that it is valid and has access to this model."
		}
		return "The service rejected the request: " + e.Message
	case ErrNoResultProduced:
		return "The request completed without producing any output."
	case ErrPermissionDenied:
		return "Microphone access was denied."
	case ErrCapabilityUnavailable:
		return "This feature is not available on this device."
	case ErrInvalidRequest:
		return e.Message
	default:
		return "A connection error occurred. Please try again."
	}
}
