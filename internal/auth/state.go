package auth

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/sciencepoint/internal/domain"
)

// Phase is the controller's coarse state.
type Phase int

const (
	// PhaseBootstrapping lasts until RestoreOnStartup finishes.
	PhaseBootstrapping Phase = iota
	// PhaseAnonymous means nobody is logged in.
	PhaseAnonymous
	// PhaseAuthenticated means a valid credential is held.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SessionState is the authoritative in-memory view of the session.
type SessionState struct {
	User            *domain.Profile
	IsAuthenticated bool
	IsLoading       bool
	RememberMe      bool
	WarningShown    bool
	TimeRemaining   time.Duration
}

// sessionStateDoc is the json/yaml shape of SessionState. The remaining
// time is whole milliseconds.
type sessionStateDoc struct {
	User            *domain.Profile `json:"user,omitempty" yaml:"user,omitempty"`
	IsAuthenticated bool            `json:"is_authenticated" yaml:"is_authenticated"`
	IsLoading       bool            `json:"is_loading" yaml:"is_loading"`
	RememberMe      bool            `json:"remember_me" yaml:"remember_me"`
	WarningShown    bool            `json:"warning_shown" yaml:"warning_shown"`
	TimeRemainingMs int64           `json:"time_remaining_ms" yaml:"time_remaining_ms"`
}

func (s SessionState) doc() sessionStateDoc {
	return sessionStateDoc{
		User:            s.User,
		IsAuthenticated: s.IsAuthenticated,
		IsLoading:       s.IsLoading,
		RememberMe:      s.RememberMe,
		WarningShown:    s.WarningShown,
		TimeRemainingMs: s.TimeRemaining.Milliseconds(),
	}
}

// MarshalJSON implements json.Marshaler.
func (s SessionState) MarshalJSON() ([]byte, error) { return json.Marshal(s.doc()) }

// MarshalYAML implements yaml.Marshaler.
func (s SessionState) MarshalYAML() (any, error) { return s.doc(), nil }

// Phase derives the controller phase from the state.
func (s SessionState) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseBootstrapping
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

func (s SessionState) clone() SessionState {
	if s.User != nil {
		u := s.User.Clone()
		s.User = &u
	}
	return s
}

func anonymous() SessionState {
	return SessionState{}
}
