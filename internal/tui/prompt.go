package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/sciencepoint/internal/domain"
)

// LoginFields holds what the login form collects.
type LoginFields struct {
	Username   string
	Password   string
	RememberMe bool
}

// Input returns the credentials part of the form.
func (f LoginFields) Input() domain.LoginInput {
	return domain.LoginInput{Username: strings.TrimSpace(f.Username), Password: f.Password}
}

// NewLoginForm builds the login form bound to fields.
func NewLoginForm(fields *LoginFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&fields.Username).
				Validate(requireValue("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&fields.Password).
				Validate(requireValue("password")),
			huh.NewConfirm().
				Title("Remember me?").
				Affirmative("Yes").
				Negative("No").
				Value(&fields.RememberMe),
		).Title("Sign in to sciencepoint"),
	)
}

// PromptLogin runs the login form. fields carries any prefilled values.
func PromptLogin(fields LoginFields) (LoginFields, error) {
	if err := NewLoginForm(&fields).Run(); err != nil {
		return fields, fmt.Errorf("prompt failed: %w", err)
	}
	return fields, nil
}

func requireValue(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	return shouldPrompt(os.Getenv, IsInteractive())
}

func shouldPrompt(getenv func(string) string, interactive bool) bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if getenv(envVar) != "" {
			return false
		}
	}

	return interactive
}
