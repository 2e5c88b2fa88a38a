package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/sciencepoint/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a suggestion to errors that carry none.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && len(appErr.Suggestions) > 0 {
		return err
	}

	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		return NewErrorWithSuggestion(err,
			"Check the backend address with 'sciencepoint config get api.base_url' and run 'sciencepoint health'")
	case strings.Contains(errMsg, "message authentication failed"):
		return NewErrorWithSuggestion(err,
			"The session file was written with a different passphrase; check SCIENCEPOINT_STORE_PASSPHRASE or run 'sciencepoint auth logout'")
	case strings.Contains(errMsg, "permission denied"):
		return NewErrorWithSuggestion(err,
			"Check permissions on ~/.sciencepoint (the directory should be 0700)")
	case strings.Contains(errMsg, "unknown configuration key"):
		return NewErrorWithSuggestion(err,
			"Run 'sciencepoint config view' to list the available keys")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

// Render returns what the CLI prints for err. Coded errors show their
// user-safe message and suggestions but never their cause.
func Render(err error, noColor bool) string {
	if err == nil {
		return ""
	}
	styles := NewStyles(noColor)

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return styles.Error.Render("✗ Error: ") + EnhanceError(err).Error()
	}

	var b strings.Builder
	b.WriteString(styles.Error.Render("✗ " + appErr.Message))
	b.WriteString(styles.Muted.Render(" (" + string(appErr.Code) + ")"))
	if len(appErr.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range appErr.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}
	if appErr.DocsURL != "" {
		b.WriteString("\n\nDocumentation: " + appErr.DocsURL)
	}
	return b.String()
}
