package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeAccessDenied       ErrorCode = "AUTH-002"
	ErrCodeSessionExpired     ErrorCode = "AUTH-003"
	ErrCodeUnauthorized       ErrorCode = "AUTH-004"
	ErrCodeNotAuthenticated   ErrorCode = "AUTH-005"
	ErrCodeRefreshFailed      ErrorCode = "AUTH-006"
	ErrCodeLoginFailed        ErrorCode = "AUTH-007"
	ErrCodePermissionDenied   ErrorCode = "AUTH-008"

	// Credential errors (TOKEN-001 to TOKEN-099)
	ErrCodeTokenEmpty     ErrorCode = "TOKEN-001"
	ErrCodeTokenMalformed ErrorCode = "TOKEN-002"
	ErrCodeTokenPayload   ErrorCode = "TOKEN-003"

	// Network errors (NET-001 to NET-099)
	ErrCodeConnectivity       ErrorCode = "NET-001"
	ErrCodeServiceUnavailable ErrorCode = "NET-002"
	ErrCodeServerError        ErrorCode = "NET-003"
	ErrCodeUnexpectedResponse ErrorCode = "NET-004"

	// Persistence errors (STORE-001 to STORE-099)
	ErrCodeStoreRead    ErrorCode = "STORE-001"
	ErrCodeStoreWrite   ErrorCode = "STORE-002"
	ErrCodeStoreCorrupt ErrorCode = "STORE-003"
	ErrCodeStoreBackend ErrorCode = "STORE-004"

	// Configuration errors (CFG-001 to CFG-099)
	ErrCodeConfigRead    ErrorCode = "CFG-001"
	ErrCodeConfigInvalid ErrorCode = "CFG-002"
	ErrCodeConfigWrite   ErrorCode = "CFG-003"
)

// AppError represents an enhanced error with code, suggestions, and documentation.
// Message is always safe to show to a user; Cause carries the raw detail.
type AppError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by code so sentinel-style comparisons work.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *AppError) WithDocs(url string) *AppError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// UserMessage returns the message that may be displayed to a user.
// Errors that are not AppErrors never leak their raw text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}

// Common error constructors for frequently used errors

// NewInvalidCredentialsError creates a bad username/password error
func NewInvalidCredentialsError(cause error) *AppError {
	return Wrap(ErrCodeInvalidCredentials, "Invalid username or password.", cause).
		WithSuggestion("Check your username and password and try again").
		WithSuggestion("Ask an administrator to reset your password if you have forgotten it")
}

// NewAccessDeniedError creates a forbidden error
func NewAccessDeniedError(cause error) *AppError {
	return Wrap(ErrCodeAccessDenied, "Access denied. Your account may be inactive.", cause).
		WithSuggestion("Contact the coaching center administrator")
}

// NewServiceUnavailableError creates a not-found/unavailable error
func NewServiceUnavailableError(cause error) *AppError {
	return Wrap(ErrCodeServiceUnavailable, "The login service is unavailable. Please try again later.", cause).
		WithSuggestion("Check the configured API base URL: sciencepoint config get api.base_url")
}

// NewServerError creates a 5xx error
func NewServerError(cause error) *AppError {
	return Wrap(ErrCodeServerError, "The server encountered an error. Please try again later.", cause).
		WithSuggestion("Run 'sciencepoint health' to check the backend status")
}

// NewConnectivityError creates a transport failure error
func NewConnectivityError(cause error) *AppError {
	return Wrap(ErrCodeConnectivity, "Unable to reach the server. Check your network connection.", cause).
		WithSuggestion("Verify your network connection").
		WithSuggestion("Run 'sciencepoint health' to check the backend status")
}

// NewLoginFailedError creates the generic login failure
func NewLoginFailedError(cause error) *AppError {
	return Wrap(ErrCodeLoginFailed, "Login failed. Please try again.", cause)
}

// NewNotAuthenticatedError creates an error for operations requiring a session
func NewNotAuthenticatedError() *AppError {
	return New(ErrCodeNotAuthenticated, "You are not logged in.").
		WithSuggestion("Run 'sciencepoint auth login' to authenticate")
}

// NewSessionNotKeptError reports a login whose credential was already
// expired or unreadable, so the session ended as soon as it began.
func NewSessionNotKeptError() *AppError {
	return New(ErrCodeSessionExpired, "The server issued a session that could not be kept.").
		WithSuggestion("Check the system clock, then run 'sciencepoint auth login' again")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *AppError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'sciencepoint config view' to inspect the effective configuration")
}
