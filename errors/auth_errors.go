package errors

import (
	"errors"
	"fmt"
)

// Verification failure reasons. Callers must treat every one of these as
// "unauthenticated" at the transport boundary, never as a server fault.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenNotYetValid      = errors.New("token not yet valid")
	ErrTokenWrongType        = errors.New("token has wrong type")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenRevoked          = errors.New("token revoked")
)

// Issuance failures.
var (
	ErrInactiveAccount = errors.New("account is not active")
	ErrSubjectNotFound = errors.New("subject not found")
)

// IsUnauthenticated reports whether err is one of the verification failures
// that map to HTTP 401.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenNotYetValid) ||
		errors.Is(err, ErrTokenWrongType) ||
		errors.Is(err, ErrTokenSignatureInvalid) ||
		errors.Is(err, ErrTokenRevoked)
}

// AuthError is the standardized JSON error body served by the middleware.
type AuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard error codes
const (
	Unauthenticated  = "unauthenticated"
	PermissionDenied = "permission_denied"
	InvalidRequest   = "invalid_request"
	RequestInFlight  = "request_in_flight"
	ServerError      = "server_error"
)

// Common error constructors
func NewUnauthenticated(description string) *AuthError {
	return &AuthError{
		Code:        Unauthenticated,
		Description: description,
	}
}

func NewPermissionDenied(description string) *AuthError {
	return &AuthError{
		Code:        PermissionDenied,
		Description: description,
	}
}

func NewInvalidRequest(description string) *AuthError {
	return &AuthError{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewRequestInFlight(description string) *AuthError {
	return &AuthError{
		Code:        RequestInFlight,
		Description: description,
	}
}

func NewServerError(description string) *AuthError {
	return &AuthError{
		Code:        ServerError,
		Description: description,
	}
}
