package auth

import (
	"context"
	"time"
)

// Reason says why a session ended.
type Reason string

// Logout reasons
const (
	ReasonUser          Reason = "user"
	ReasonExpired       Reason = "expired"
	ReasonUnauthorized  Reason = "unauthorized"
	ReasonRefreshFailed Reason = "refresh_failed"
)

// Level is the severity of a user-facing notice.
type Level string

// Notice levels
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a short message for the user.
type Notice struct {
	Level   Level
	Message string
}

// Notifier displays notices. The controller is the only component that
// produces them.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// WarningPrompt is what the expiry warning surface shows.
type WarningPrompt struct {
	TimeRemaining time.Duration
	// Refresh extends the session if the server still accepts it.
	Refresh func(ctx context.Context) bool
	// Logout ends the session now.
	Logout func()
}

// WarningSurface shows and hides the expiry warning.
type WarningSurface interface {
	ShowWarning(WarningPrompt)
	HideWarning()
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

type nopSurface struct{}

func (nopSurface) ShowWarning(WarningPrompt) {}
func (nopSurface) HideWarning()              {}

func logoutNotice(reason Reason) Notice {
	switch reason {
	case ReasonExpired:
		return Notice{Level: LevelWarning, Message: "Your session has expired. Please log in again."}
	case ReasonUnauthorized:
		return Notice{Level: LevelWarning, Message: "Your session is no longer valid. Please log in again."}
	case ReasonRefreshFailed:
		return Notice{Level: LevelWarning, Message: "Could not extend your session. Please log in again."}
	default:
		return Notice{Level: LevelSuccess, Message: "Logged out successfully"}
	}
}
