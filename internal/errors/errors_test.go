package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeSessionExpired, "test error message")

	if err.Code != ErrCodeSessionExpired {
		t.Errorf("expected code %s, got %s", ErrCodeSessionExpired, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeStoreRead, "failed to read session", cause)

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewConnectivityError(fmt.Errorf("dial tcp: connection refused"))
	msg := err.Error()

	for _, want := range []string{"[NET-001]", "Unable to reach the server", "connection refused", "Suggestions:"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error string %q missing %q", msg, want)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", NewInvalidCredentialsError(nil))

	if !errors.Is(wrapped, New(ErrCodeInvalidCredentials, "")) {
		t.Error("expected errors.Is to match on code")
	}
	if errors.Is(wrapped, New(ErrCodeServerError, "")) {
		t.Error("expected errors.Is not to match a different code")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", NewServerError(nil))); got != ErrCodeServerError {
		t.Errorf("CodeOf = %s, want %s", got, ErrCodeServerError)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestUserMessageNeverLeaksRawErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"app error", NewAccessDeniedError(fmt.Errorf("403 body")), "Access denied. Your account may be inactive."},
		{"raw error", fmt.Errorf("dial tcp 10.0.0.1:8001: i/o timeout"), "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithSuggestionsAndDocs(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "bad").
		WithSuggestions("one", "two").
		WithDocs("https://example.com/docs")

	if len(err.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(err.Suggestions))
	}
	if !strings.Contains(err.Error(), "Documentation: https://example.com/docs") {
		t.Errorf("docs URL missing from %q", err.Error())
	}
}
