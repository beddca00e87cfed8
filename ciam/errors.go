package ciam

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Package-level errors
var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotInitialized indicates the global client hasn't been initialized
	ErrNotInitialized = errors.New("ciam client not initialized")

	// ErrNoToken indicates an authenticated call was attempted before any token was obtained
	ErrNoToken = errors.New("no access token available")

	// ErrTokenRevoked indicates the stored token has been revoked
	ErrTokenRevoked = errors.New("token revoked")

	// ErrNoRefreshToken indicates no refresh token is available
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrProtocolViolation indicates the server broke the response contract
	ErrProtocolViolation = errors.New("ciam protocol violation")

	// ErrMissingBody is returned for a 2xx response (other than 204) without a body
	ErrMissingBody = fmt.Errorf("%w: missing response body", ErrProtocolViolation)

	// ErrFlowNotFound indicates an unknown, expired or already consumed flow
	ErrFlowNotFound = errors.New("flow not found")
)

// Status is the category reported by the CIAM service for a failed call.
type Status string

const (
	StatusUnknown            Status = "unknownError"
	StatusAlreadyExists      Status = "ALREADY_EXISTS"
	StatusDeadlineExceeded   Status = "DEADLINE_EXCEEDED"
	StatusFailedPrecondition Status = "FAILED_PRECONDITION"
	StatusInternal           Status = "INTERNAL"
	StatusNotFound           Status = "NOT_FOUND"
	StatusPermissionDenied   Status = "PERMISSION_DENIED"
	StatusResourceExhausted  Status = "RESOURCE_EXHAUSTED"
	StatusUnauthenticated    Status = "UNAUTHENTICATED"
	StatusUnavailable        Status = "UNAVAILABLE"
)

// ParseStatus maps a wire value to a Status. Anything unrecognised is StatusUnknown.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusAlreadyExists, StatusDeadlineExceeded, StatusFailedPrecondition,
		StatusInternal, StatusNotFound, StatusPermissionDenied,
		StatusResourceExhausted, StatusUnauthenticated, StatusUnavailable:
		return st
	default:
		return StatusUnknown
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// AuthError is a failure reported by the CIAM service, or synthesized from a
// non-2xx response whose body is not a structured error.
type AuthError struct {
	Status  Status `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`

	// Err is set for client-side failures surfaced as AuthError, e.g. ErrNoToken.
	Err error `json:"-"`
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ciam error [%s] %d: %s", e.Status, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("ciam error [%s] %d: %v", e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("ciam error [%s] %d", e.Status, e.Code)
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

type authErrorEnvelope struct {
	Error *AuthError `json:"error"`
}

// MarshalAuthError renders err in the service's wire form.
func MarshalAuthError(err *AuthError) ([]byte, error) {
	return json.Marshal(authErrorEnvelope{Error: err})
}

// parseAuthError decodes a non-2xx body, falling back to an unknownError
// carrying the HTTP code and the raw body text. A partial envelope gets the
// same status and code defaults.
func parseAuthError(code int, body []byte) *AuthError {
	var env authErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		if env.Error.Status == "" {
			env.Error.Status = StatusUnknown
		}
		if env.Error.Code == 0 {
			env.Error.Code = code
		}
		return env.Error
	}
	return &AuthError{
		Status:  StatusUnknown,
		Code:    code,
		Message: strings.TrimSpace(string(body)),
	}
}

func unauthenticated(err error) *AuthError {
	return &AuthError{
		Status:  StatusUnauthenticated,
		Code:    401,
		Message: err.Error(),
		Err:     err,
	}
}

// DecodeError reports a 2xx response whose body could not be decoded into
// the expected type.
type DecodeError struct {
	Type string
	Body []byte
	Err  error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("ciam: failed to decode %s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusOf returns the Status carried by err, or "" when err is not an AuthError.
func StatusOf(err error) Status {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	switch StatusOf(err) {
	case StatusUnavailable, StatusDeadlineExceeded, StatusResourceExhausted:
		return true
	}
	return false
}
