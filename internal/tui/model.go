package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/sciencepoint/internal/auth"
	"github.com/felixgeelhaar/sciencepoint/internal/ux"
)

const maxNotices = 3

// Actions are the session operations the watch view can trigger.
type Actions struct {
	Refresh func(ctx context.Context) bool
	Logout  func()
}

// Model is the session watch view. It mirrors the controller's state and
// shows the expiry warning with a one-second countdown.
type Model struct {
	ctx     context.Context
	actions Actions
	listen  tea.Cmd
	now     func() time.Time

	// Session state
	state    auth.SessionState
	deadline time.Time // zero when the expiry is unknown
	now0     time.Time // last clock reading
	ended    bool

	// Warning state
	warning    *auth.WarningPrompt
	refreshing bool

	notices []auth.Notice

	// UI state
	keys     keyMap
	help     help.Model
	width    int
	quitting bool

	styles Styles
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	ux.Styles
	WarningBox lipgloss.Style
	Help       lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	base := ux.NewStyles(false)
	return Styles{
		Styles:     base,
		WarningBox: base.Box.BorderForeground(ux.ColorWarning),
		Help:       lipgloss.NewStyle().MarginTop(1),
	}
}

type keyMap struct {
	Refresh key.Binding
	Logout  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "extend session")),
		Logout:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "logout now")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Logout, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Option configures a Model.
type Option func(*Model)

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithEvents makes the model consume controller events from s.
func WithEvents(s *Surface) Option {
	return func(m *Model) { m.listen = s.Next }
}

// NewModel creates a watch view for state.
func NewModel(ctx context.Context, state auth.SessionState, actions Actions, opts ...Option) Model {
	m := Model{
		ctx:     ctx,
		actions: actions,
		now:     time.Now,
		keys:    defaultKeyMap(),
		help:    help.New(),
		styles:  DefaultStyles(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.setState(state, m.now())
	return m
}

// tickMsg drives the countdown.
type tickMsg time.Time

// StateMsg carries a new controller state.
type StateMsg struct{ State auth.SessionState }

// WarningMsg opens the expiry warning.
type WarningMsg struct{ Prompt auth.WarningPrompt }

// HideWarningMsg closes the expiry warning.
type HideWarningMsg struct{}

// NoticeMsg carries a user-facing notice.
type NoticeMsg struct{ Notice auth.Notice }

type refreshDoneMsg struct{ ok bool }

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the countdown and the event listener (required by Bubble Tea)
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.listen)
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.now0 = time.Time(msg)
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case StateMsg:
		m.setState(msg.State, m.now())
		if m.ended {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.listen

	case WarningMsg:
		p := msg.Prompt
		m.warning = &p
		m.deadline = m.now().Add(p.TimeRemaining)
		return m, m.listen

	case HideWarningMsg:
		m.warning = nil
		m.refreshing = false
		return m, m.listen

	case NoticeMsg:
		m.notices = append(m.notices, msg.Notice)
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		return m, m.listen

	case refreshDoneMsg:
		m.refreshing = false
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		refresh := m.actions.Refresh
		if m.warning != nil && m.warning.Refresh != nil {
			refresh = m.warning.Refresh
		}
		if refresh == nil || m.refreshing || !m.state.IsAuthenticated {
			return m, nil
		}
		m.refreshing = true
		ctx := m.ctx
		return m, func() tea.Msg { return refreshDoneMsg{ok: refresh(ctx)} }

	case key.Matches(msg, m.keys.Logout):
		if !m.state.IsAuthenticated {
			return m, nil
		}
		logout := m.actions.Logout
		if m.warning != nil && m.warning.Logout != nil {
			logout = m.warning.Logout
		}
		if logout == nil {
			return m, nil
		}
		return m, func() tea.Msg { logout(); return nil }
	}

	return m, nil
}

func (m *Model) setState(s auth.SessionState, now time.Time) {
	wasAuthenticated := m.state.IsAuthenticated
	m.state = s
	m.now0 = now
	if s.IsAuthenticated {
		m.deadline = now.Add(s.TimeRemaining)
	} else {
		m.deadline = time.Time{}
		m.warning = nil
		m.refreshing = false
	}
	if !s.WarningShown && s.IsAuthenticated {
		m.warning = nil
	}
	m.ended = wasAuthenticated && !s.IsAuthenticated
}

// remaining is the countdown shown to the user.
func (m Model) remaining() time.Duration {
	if m.deadline.IsZero() {
		return 0
	}
	now := m.now0
	if now.IsZero() {
		now = m.now()
	}
	if d := m.deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// State returns the last state the view received.
func (m Model) State() auth.SessionState { return m.state }

// WarningOpen reports whether the expiry warning is showing.
func (m Model) WarningOpen() bool { return m.warning != nil }

// Ended reports whether the session ended while the view was open.
func (m Model) Ended() bool { return m.ended }
