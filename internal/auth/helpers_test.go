package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sciencepoint/internal/authsignal"
	"github.com/felixgeelhaar/sciencepoint/internal/domain"
	"github.com/felixgeelhaar/sciencepoint/internal/metrics"
	"github.com/felixgeelhaar/sciencepoint/internal/monitor"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
	"github.com/felixgeelhaar/sciencepoint/internal/session"
	"github.com/felixgeelhaar/sciencepoint/internal/storage"
)

var epoch = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBackend struct {
	loginFn func(ctx context.Context, username, password string, rememberMe bool) (*platform.LoginResponse, error)
	meFn    func(ctx context.Context) (*domain.Profile, error)

	logins atomic.Int32
	mes    atomic.Int32
}

func (b *fakeBackend) Login(ctx context.Context, username, password string, rememberMe bool) (*platform.LoginResponse, error) {
	b.logins.Add(1)
	return b.loginFn(ctx, username, password, rememberMe)
}

func (b *fakeBackend) Me(ctx context.Context) (*domain.Profile, error) {
	b.mes.Add(1)
	return b.meFn(ctx)
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *noticeRecorder) count(level Level) int {
	n := 0
	for _, notice := range r.all() {
		if notice.Level == level {
			n++
		}
	}
	return n
}

type surfaceRecorder struct {
	mu      sync.Mutex
	shown   []WarningPrompt
	hidden  int
	visible bool
}

func (s *surfaceRecorder) ShowWarning(p WarningPrompt) {
	s.mu.Lock()
	s.shown = append(s.shown, p)
	s.visible = true
	s.mu.Unlock()
}

func (s *surfaceRecorder) HideWarning() {
	s.mu.Lock()
	s.hidden++
	s.visible = false
	s.mu.Unlock()
}

func (s *surfaceRecorder) prompts() []WarningPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WarningPrompt(nil), s.shown...)
}

func (s *surfaceRecorder) isVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

type harness struct {
	clock    *fakeClock
	mem      *storage.Memory
	store    *session.Store
	bus      *authsignal.Bus
	sched    *monitor.ManualScheduler
	backend  *fakeBackend
	notices  *noticeRecorder
	surface  *surfaceRecorder
	metrics  *metrics.Metrics
	ctrl     *Controller
	observed []SessionState
	obsMu    sync.Mutex
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		clock:   &fakeClock{now: epoch},
		mem:     storage.NewMemory(),
		bus:     authsignal.NewBus(),
		sched:   monitor.NewManualScheduler(),
		backend: &fakeBackend{},
		notices: &noticeRecorder{},
		surface: &surfaceRecorder{},
		metrics: metrics.Nop(),
	}
	h.store = session.NewStore(h.mem, nil)
	h.backend.meFn = func(context.Context) (*domain.Profile, error) {
		p := adminProfile()
		return &p, nil
	}

	base := []Option{
		WithClock(h.clock.Now),
		WithMonitorOptions(monitor.WithScheduler(h.sched)),
		WithNotifier(h.notices),
		WithWarningSurface(h.surface),
		WithMetrics(h.metrics),
		WithStateObserver(func(s SessionState) {
			h.obsMu.Lock()
			h.observed = append(h.observed, s)
			h.obsMu.Unlock()
		}),
	}
	h.ctrl = NewController(Deps{Backend: h.backend, Store: h.store, Bus: h.bus}, append(base, opts...)...)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) lastObserved() SessionState {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	return h.observed[len(h.observed)-1]
}

func (h *harness) loginReturns(token string, user domain.Profile) {
	h.backend.loginFn = func(context.Context, string, string, bool) (*platform.LoginResponse, error) {
		return &platform.LoginResponse{AccessToken: token, TokenType: "bearer", User: user}, nil
	}
}

func (h *harness) loginFails(err error) {
	h.backend.loginFn = func(context.Context, string, string, bool) (*platform.LoginResponse, error) {
		return nil, err
	}
}

func tokenExpiringIn(t testing.TB, d time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a",
		"exp": epoch.Add(d).Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func adminProfile() domain.Profile {
	return domain.Profile{ID: 1, Username: "a", FullName: "Admin User", Role: domain.RoleAdmin, IsActive: true}
}

func studentProfile() domain.Profile {
	return domain.Profile{ID: 7, Username: "ravi", FullName: "Ravi Kumar", Role: domain.RoleStudent, IsActive: true}
}
