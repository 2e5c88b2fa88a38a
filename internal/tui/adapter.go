package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/sciencepoint/internal/auth"
)

const surfaceBuffer = 64

// Surface bridges the auth controller to a running watch view. Events
// raised before the program starts are queued and delivered in order.
type Surface struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	last *auth.Notice
}

// NewSurface creates a Surface.
func NewSurface() *Surface {
	return &Surface{
		events: make(chan tea.Msg, surfaceBuffer),
		done:   make(chan struct{}),
	}
}

// ShowWarning implements auth.WarningSurface.
func (s *Surface) ShowWarning(p auth.WarningPrompt) { s.send(WarningMsg{Prompt: p}) }

// HideWarning implements auth.WarningSurface.
func (s *Surface) HideWarning() { s.send(HideWarningMsg{}) }

// Notify implements auth.Notifier.
func (s *Surface) Notify(n auth.Notice) {
	s.mu.Lock()
	s.last = &n
	s.mu.Unlock()
	s.send(NoticeMsg{Notice: n})
}

// LastNotice returns the most recent notice, including one raised after
// Close.
func (s *Surface) LastNotice() (auth.Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return auth.Notice{}, false
	}
	return *s.last, true
}

// Observe is a controller state observer.
func (s *Surface) Observe(state auth.SessionState) { s.send(StateMsg{State: state}) }

// Next waits for the next event. It returns nil once the surface is
// closed.
func (s *Surface) Next() tea.Msg {
	select {
	case msg := <-s.events:
		return msg
	case <-s.done:
		return nil
	}
}

// Close releases any sender blocked on a full queue. Later events are
// dropped.
func (s *Surface) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Surface) send(msg tea.Msg) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- msg:
	case <-s.done:
	}
}

var (
	_ auth.WarningSurface = (*Surface)(nil)
	_ auth.Notifier       = (*Surface)(nil)
)
