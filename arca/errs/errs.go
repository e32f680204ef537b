// Package errs defines the error taxonomy shared by all arca packages.
//
// Callers branch on the error kind with errors.As; a business rejection by
// ARCA is not an error and is reported through model.AutorizacionResult.
package errs

import "fmt"

// ValidationError reports invalid input detected before any network call.
// It is never retriable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CertificateError reports a failure loading or parsing certificate material.
type CertificateError struct {
	Message string
	Cause   error
}

func (e *CertificateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CertificateError) Unwrap() error { return e.Cause }

// Certificate builds a CertificateError wrapping cause (which may be nil).
func Certificate(cause error, format string, args ...any) error {
	return &CertificateError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AuthError reports a WSAA transport or protocol failure, including signing
// failures and malformed authentication responses.
type AuthError struct {
	Message    string
	StatusCode int    // HTTP status, 0 when the failure was not an HTTP error
	Body       string // raw response body, for diagnostics
	Cause      error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("WSAA http status %d: %s", e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

// Auth builds an AuthError wrapping cause (which may be nil).
func Auth(cause error, format string, args ...any) error {
	return &AuthError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ServiceError reports a WSFE transport or protocol failure, or a
// service-level fault carrying an ARCA error code. Distinct from a business
// rejection, which is returned as a result value.
type ServiceError struct {
	Code    int // ARCA fault code, 0 when the failure was local
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("WSFE error %d: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// Service builds a ServiceError wrapping cause (which may be nil).
func Service(cause error, format string, args ...any) error {
	return &ServiceError{Message: fmt.Sprintf(format, args...), Cause: cause}
}
