package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error values for the session client
var (
	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrNoToken      = errors.New("no access token")
	ErrAuthExpired  = errors.New("access token rejected")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Reason is the machine readable code carried on a login redirect.
type Reason string

const (
	ReasonSessionExpired   Reason = "session_expired"
	ReasonCSRFError        Reason = "csrf_error"
	ReasonInsufficientRole Reason = "insufficient_role"
)

// NetworkError is a connectivity failure or timeout. It never implies logout.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out", e.Op)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthTerminalError means the session cannot be recovered and the user must log in again.
type AuthTerminalError struct {
	Reason Reason
	Status int
	Err    error
}

func (e *AuthTerminalError) Error() string {
	msg := "authentication failed (" + string(e.Reason) + ")"
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthTerminalError) Unwrap() error {
	return e.Err
}

// NewAuthTerminal builds an AuthTerminalError from an HTTP status.
// 403 maps to a CSRF failure, everything else to an expired session.
func NewAuthTerminal(status int, err error) *AuthTerminalError {
	reason := ReasonSessionExpired
	if status == http.StatusForbidden {
		reason = ReasonCSRFError
	}
	return &AuthTerminalError{Reason: reason, Status: status, Err: err}
}

// PermissionFetchError wraps a failed "my permissions" fetch.
type PermissionFetchError struct {
	Err error
}

func (e *PermissionFetchError) Error() string {
	return "fetch permissions: " + e.Err.Error()
}

func (e *PermissionFetchError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, http.StatusText(e.Status))
}

// ReasonOf returns the redirect reason carried by err, or "" when err is not terminal.
func ReasonOf(err error) Reason {
	var terminal *AuthTerminalError
	if errors.As(err, &terminal) {
		return terminal.Reason
	}
	return ""
}

// IsTimeout reports whether err is a timed out request
func IsTimeout(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Timeout
}

// StorageError marks err as a durable storage failure so callers can match
// ErrStorageUnavailable while keeping the backend's own error in the chain.
func StorageError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w: %w", append(args, ErrStorageUnavailable, err)...)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
