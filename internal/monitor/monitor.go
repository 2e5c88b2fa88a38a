// Package monitor watches a credential's remaining lifetime and reports
// when it is about to expire or has expired.
package monitor

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/sciencepoint/internal/credential"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
)

// DefaultInterval is how often the credential is re-evaluated.
const DefaultInterval = 30 * time.Second

// State is the monitor's position in the credential lifecycle.
type State int

const (
	// Idle means no credential is being watched.
	Idle State = iota
	// Watching means a credential is valid and no warning was issued.
	Watching
	// Warned means the expiry warning was issued.
	Warned
	// Expired is held only while the expiry event is delivered.
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	case Warned:
		return "warned"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// EventKind identifies what a check found.
type EventKind int

const (
	// EventTick reports the remaining lifetime with no transition.
	EventTick EventKind = iota
	// EventWarning is emitted once per credential when it starts expiring soon.
	EventWarning
	// EventExpired instructs the owner to end the session.
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventWarning:
		return "warning"
	case EventExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Event is delivered to the Handler after each check.
type Event struct {
	Kind      EventKind
	Token     string
	Remaining time.Duration
	At        time.Time
}

// Handler receives monitor events. It is called without any monitor lock
// held and may call back into the monitor.
type Handler func(Event)

// WarningFlag is the persisted once-per-credential warning marker.
type WarningFlag interface {
	HasShownWarning() bool
	// MarkWarningShown records the warning only while token is the
	// stored credential.
	MarkWarningShown(token string)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithThreshold sets how close to expiry the warning is raised.
func WithThreshold(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.threshold = d
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithScheduler replaces the ticker-based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Monitor) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// Monitor polls one credential at a time.
type Monitor struct {
	mu    sync.Mutex
	state State
	token string
	// gen is bumped on every Start and Stop so that a tick scheduled for an
	// earlier credential does nothing.
	gen  uint64
	task Task

	flag    WarningFlag
	handler Handler

	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	scheduler Scheduler
	logger    *log.Logger
}

// New returns an idle monitor.
func New(flag WarningFlag, handler Handler, opts ...Option) *Monitor {
	m := &Monitor{
		flag:      flag,
		handler:   handler,
		interval:  DefaultInterval,
		threshold: credential.DefaultWarningThreshold,
		now:       time.Now,
		scheduler: TickerScheduler{},
		logger:    log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("monitor")
	return m
}

// Start watches token, replacing any credential already watched. One check
// runs before Start returns.
func (m *Monitor) Start(token string) {
	m.mu.Lock()
	m.stopTaskLocked()
	m.gen++
	gen := m.gen
	m.token = token
	m.state = Watching
	m.task = m.scheduler.Every(m.interval, func() { m.check(gen) })
	m.mu.Unlock()

	m.logger.Debug("monitor started",
		"credential", credential.Fingerprint(token),
		"interval", m.interval.String())

	m.check(gen)
}

// Check evaluates the current credential immediately.
func (m *Monitor) Check() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.check(gen)
}

// Stop cancels polling and returns to Idle. It is safe to call at any time,
// including from a Handler.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Idle && m.task == nil {
		return
	}
	m.stopTaskLocked()
	m.gen++
	m.token = ""
	m.state = Idle
	m.logger.Debug("monitor stopped")
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Threshold returns the configured warning threshold.
func (m *Monitor) Threshold() time.Duration { return m.threshold }

// Interval returns the configured polling period.
func (m *Monitor) Interval() time.Duration { return m.interval }

func (m *Monitor) stopTaskLocked() {
	if m.task != nil {
		m.task.Stop()
		m.task = nil
	}
}

func (m *Monitor) check(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state == Idle || m.state == Expired {
		m.mu.Unlock()
		return
	}

	now := m.now()
	ev := Event{Token: m.token, At: now}

	switch {
	case credential.IsExpired(m.token, now):
		ev.Kind = EventExpired
		m.state = Expired
		m.stopTaskLocked()
		m.gen++
		gen = m.gen

	case credential.IsExpiringSoon(m.token, now, m.threshold):
		ev.Remaining = credential.TimeUntilExpiry(m.token, now)
		ev.Kind = EventTick
		if m.state == Watching {
			// The flag is checked and set under the monitor lock, so only one
			// check can claim the warning for this credential.
			if !m.flag.HasShownWarning() {
				m.flag.MarkWarningShown(m.token)
				ev.Kind = EventWarning
			}
			m.state = Warned
		}

	default:
		ev.Kind = EventTick
		ev.Remaining = credential.TimeUntilExpiry(m.token, now)
	}
	m.mu.Unlock()

	if ev.Kind != EventTick {
		m.logger.Info("credential "+ev.Kind.String(),
			"credential", credential.Fingerprint(ev.Token),
			"remaining", credential.FormatRemaining(ev.Remaining))
	}

	if m.handler != nil {
		m.handler(ev)
	}

	if ev.Kind == EventExpired {
		m.mu.Lock()
		if m.gen == gen && m.state == Expired {
			m.state = Idle
			m.token = ""
		}
		m.mu.Unlock()
	}
}
