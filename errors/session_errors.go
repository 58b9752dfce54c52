package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the session, token and client packages.
var (
	ErrDecode            = errors.New("token decode failed")
	ErrTokenExpired      = errors.New("token expired")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNetwork           = errors.New("network error")
	ErrOperationInFlight = errors.New("session operation already in flight")
	ErrSessionChanged    = errors.New("session changed while operation was in flight")
)

// DecodeError reports a malformed token. It is treated the same as an
// expired token by the session manager.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode, e.Reason)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// AuthError is returned for rejected credentials and for any 401 from an
// authenticated endpoint. Message carries the server's text when present.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return ErrUnauthorized.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUnauthorized, e.Message)
}

func (e *AuthError) Unwrap() error { return ErrUnauthorized }

// NetworkError wraps a transport failure (dial, TLS, timeout, reset).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrNetwork, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// APIError is any other non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api error: HTTP %d: %s", e.Status, e.Message)
}

// NewDecodeError builds a DecodeError.
func NewDecodeError(reason string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Err: err}
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) || errors.Is(err, ErrUnauthorized)
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// UserMessage returns the text to show a user for a failed form submission.
func UserMessage(err error) string {
	var (
		ae  *AuthError
		api *APIError
		ne  *NetworkError
	)
	switch {
	case errors.As(err, &ae) && ae.Message != "":
		return ae.Message
	case errors.As(err, &api) && api.Message != "":
		return api.Message
	case errors.As(err, &ne):
		return "could not reach the server"
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}
