package errors

import (
	"errors"
	"fmt"

	"github.com/arenahub/playground-client/internal/model"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Transport
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"

	// Pre-flight, no network call made
	ErrCodeAuthRequired          ErrorCode = "AUTH_REQUIRED"
	ErrCodePortalAuthRequired    ErrorCode = "PORTAL_AUTH_REQUIRED"
	ErrCodePortalAcademyRequired ErrorCode = "PORTAL_ACADEMY_REQUIRED"
	ErrCodePortalSessionInvalid  ErrorCode = "PORTAL_SESSION_INVALID"
	ErrCodePortalTryOutMissing   ErrorCode = "PORTAL_TRYOUT_MISSING"

	// Classified HTTP responses
	ErrCodeReauthRequired       ErrorCode = "REAUTH_REQUIRED"
	ErrCodePortalReauthRequired ErrorCode = "PORTAL_REAUTH_REQUIRED"
	ErrCodePortalForbidden      ErrorCode = "PORTAL_FORBIDDEN"
	ErrCodeHTTP                 ErrorCode = "HTTP_ERROR"
)

// AllCodes lists the closed taxonomy.
var AllCodes = []ErrorCode{
	ErrCodeNetwork,
	ErrCodeAuthRequired,
	ErrCodePortalAuthRequired,
	ErrCodePortalAcademyRequired,
	ErrCodeReauthRequired,
	ErrCodePortalReauthRequired,
	ErrCodePortalForbidden,
	ErrCodePortalSessionInvalid,
	ErrCodePortalTryOutMissing,
	ErrCodeHTTP,
}

// AppError is the classified error handed back to feature code and the UI.
type AppError struct {
	Code    ErrorCode          `json:"code"`
	Message string             `json:"message"`
	Status  int                `json:"status"`
	Scope   model.RequestScope `json:"scope,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Details any                `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s (cause: %v)", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithScope(scope model.RequestScope) *AppError {
	e.Scope = scope
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Network(cause error) *AppError {
	return Wrap(ErrCodeNetwork, "Network request failed", cause)
}

func AuthRequired() *AppError {
	return New(ErrCodeAuthRequired, "Sign in to continue").WithScope(model.ScopeApp)
}

func PortalAuthRequired() *AppError {
	return New(ErrCodePortalAuthRequired, "Portal sign in required").WithScope(model.ScopePortal)
}

func PortalAcademyRequired() *AppError {
	return New(ErrCodePortalAcademyRequired, "Select an academy to continue").WithScope(model.ScopePortal)
}

func PortalSessionInvalid(reason string) *AppError {
	err := New(ErrCodePortalSessionInvalid, "Portal session needs a refresh").WithScope(model.ScopePortal)
	err.Reason = reason
	return err
}

func PortalTryOutMissing() *AppError {
	return New(ErrCodePortalTryOutMissing, "Try-out id is missing; refresh the portal session").WithScope(model.ScopePortal)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeHTTP
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeHTTP
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
