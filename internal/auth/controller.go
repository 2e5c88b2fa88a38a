// Package auth owns the client's session: login, logout, restore, refresh
// and the reactions to expiry and server-side rejection.
package auth

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/sciencepoint/internal/authsignal"
	"github.com/felixgeelhaar/sciencepoint/internal/credential"
	"github.com/felixgeelhaar/sciencepoint/internal/domain"
	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
	"github.com/felixgeelhaar/sciencepoint/internal/metrics"
	"github.com/felixgeelhaar/sciencepoint/internal/monitor"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
	"github.com/felixgeelhaar/sciencepoint/internal/session"
)

// Backend is the part of the API the controller calls.
type Backend interface {
	Login(ctx context.Context, username, password string, rememberMe bool) (*platform.LoginResponse, error)
	Me(ctx context.Context) (*domain.Profile, error)
}

// SignalSource delivers authorization failures.
type SignalSource interface {
	Subscribe(authsignal.Subscriber) (unsubscribe func())
}

// Deps are the collaborators a Controller cannot work without.
type Deps struct {
	Backend Backend
	Store   *session.Store
	Bus     SignalSource
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets where session metrics are recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithWarningSurface sets the expiry warning UI.
func WithWarningSurface(w WarningSurface) Option {
	return func(c *Controller) {
		if w != nil {
			c.warnings = w
		}
	}
}

// WithClock injects a custom clock (useful for tests). It is shared with
// the session monitor.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMonitorOptions passes options through to the session monitor.
func WithMonitorOptions(opts ...monitor.Option) Option {
	return func(c *Controller) {
		c.monitorOpts = append(c.monitorOpts, opts...)
	}
}

// WithStateObserver registers fn to receive a copy of the state after
// every change. fn is called without locks held.
func WithStateObserver(fn func(SessionState)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// WithVerifyOnRestore makes RestoreOnStartup confirm a restored session
// with the backend before trusting it.
func WithVerifyOnRestore(verify bool) Option {
	return func(c *Controller) { c.verifyOnRestore = verify }
}

// Controller is the single owner of session state.
type Controller struct {
	backend Backend
	store   *session.Store

	logger          *log.Logger
	metrics         *metrics.Metrics
	notifier        Notifier
	warnings        WarningSurface
	now             func() time.Time
	monitorOpts     []monitor.Option
	observers       []func(SessionState)
	verifyOnRestore bool

	monitor     *monitor.Monitor
	refresh     singleflight.Group
	unsubscribe func()

	mu    sync.Mutex
	state SessionState
	token string
	// epoch changes whenever the held credential is replaced or dropped.
	epoch  uint64
	closed bool
}

// NewController wires a controller and subscribes it to deps.Bus. Call
// RestoreOnStartup next and Close when done.
func NewController(deps Deps, opts ...Option) *Controller {
	c := &Controller{
		backend:  deps.Backend,
		store:    deps.Store,
		logger:   log.DefaultLogger(),
		metrics:  metrics.Nop(),
		notifier: nopNotifier{},
		warnings: nopSurface{},
		now:      time.Now,
		state:    SessionState{IsLoading: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("auth")

	monOpts := append([]monitor.Option{
		monitor.WithClock(c.now),
		monitor.WithLogger(c.logger),
	}, c.monitorOpts...)
	c.monitor = monitor.New(c.store, c.onMonitorEvent, monOpts...)

	c.unsubscribe = func() {}
	if deps.Bus != nil {
		c.unsubscribe = deps.Bus.Subscribe(c.onSignal)
	}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Token returns the held credential, or "" when anonymous.
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// MonitorState exposes the session monitor's sub-state.
func (c *Controller) MonitorState() monitor.State {
	return c.monitor.State()
}

// Login authenticates against the backend. On failure the state is left
// untouched and the returned error carries a message safe to show.
func (c *Controller) Login(ctx context.Context, in domain.LoginInput, rememberMe bool) (*domain.Profile, error) {
	if err := in.Validate(); err != nil {
		appErr := errors.Wrap(errors.ErrCodeLoginFailed, "Please enter your username and password.", err)
		c.failLogin(appErr)
		return nil, appErr
	}

	start := time.Now()
	resp, err := c.backend.Login(ctx, in.Username, in.Password, rememberMe)
	c.metrics.LoginDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		appErr := classifyLoginError(err)
		c.failLogin(appErr)
		return nil, appErr
	}

	profile := resp.User.Clone()

	c.mu.Lock()
	c.monitor.Stop()
	c.store.Save(resp.AccessToken, profile, rememberMe)
	c.token = resp.AccessToken
	c.epoch++
	c.state = SessionState{
		User:            &profile,
		IsAuthenticated: true,
		RememberMe:      rememberMe,
		TimeRemaining:   credential.TimeUntilExpiry(resp.AccessToken, c.now()),
	}
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.metrics.LoginAttempts.WithLabelValues("success").Inc()
	c.metrics.Authenticated.Set(1)
	c.logger.Info("logged in",
		"user", profile.Username,
		"role", profile.Role.String(),
		"credential", credential.Fingerprint(resp.AccessToken),
		"remember_me", rememberMe)

	c.notifier.Notify(Notice{Level: LevelSuccess, Message: "Welcome back, " + profile.DisplayName() + "!"})
	c.publish(snapshot)
	c.syncMonitor()

	result := profile.Clone()
	return &result, nil
}

func (c *Controller) failLogin(err *errors.AppError) {
	c.metrics.LoginAttempts.WithLabelValues(resultLabel(err)).Inc()
	c.metrics.Errors.WithLabelValues(string(err.Code)).Inc()
	// The cause may hold raw transport text; it only surfaces at debug level.
	c.logger.WithError(err).Debug("login failed")
	c.notifier.Notify(Notice{Level: LevelError, Message: err.Message})
}

// Logout ends the session. It returns false, and does nothing, when no
// session is held.
func (c *Controller) Logout(reason Reason) bool {
	return c.logout(reason, "")
}

// logout ends the session if one is held and, when onlyToken is set, only
// if that credential is still the current one.
func (c *Controller) logout(reason Reason, onlyToken string) bool {
	c.mu.Lock()
	if !c.state.IsAuthenticated || (onlyToken != "" && onlyToken != c.token) {
		c.mu.Unlock()
		return false
	}
	// The timer goes first so that no tick runs against a cleared session.
	c.monitor.Stop()
	c.store.Clear()
	token := c.token
	c.token = ""
	c.epoch++
	c.state = anonymous()
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.warnings.HideWarning()
	c.metrics.Logouts.WithLabelValues(string(reason)).Inc()
	c.metrics.Authenticated.Set(0)
	c.metrics.Remaining.Set(0)
	c.logger.Info("logged out", "reason", string(reason), "credential", credential.Fingerprint(token))

	c.notifier.Notify(logoutNotice(reason))
	c.publish(snapshot)
	return true
}

// RestoreOnStartup resumes a persisted session if its credential is still
// valid, and clears storage otherwise. It always leaves IsLoading false.
func (c *Controller) RestoreOnStartup(ctx context.Context) SessionState {
	c.mu.Lock()
	if c.state.IsAuthenticated {
		c.state.IsLoading = false
		snapshot := c.state.clone()
		c.mu.Unlock()
		return snapshot
	}
	c.mu.Unlock()

	rec := c.store.Load()
	now := c.now()

	if rec == nil || credential.IsExpired(rec.Token, now) {
		outcome := "none"
		if rec != nil {
			outcome = "expired"
		}
		c.store.Clear()

		c.mu.Lock()
		c.state = anonymous()
		snapshot := c.state.clone()
		c.mu.Unlock()

		c.metrics.Restores.WithLabelValues(outcome).Inc()
		c.metrics.Authenticated.Set(0)
		c.logger.Debug("no session restored", "outcome", outcome)
		c.publish(snapshot)
		return snapshot
	}

	profile := rec.Profile
	c.mu.Lock()
	c.token = rec.Token
	c.epoch++
	c.state = SessionState{
		User:            &profile,
		IsAuthenticated: true,
		RememberMe:      rec.RememberMe,
		WarningShown:    rec.WarningShown,
		TimeRemaining:   credential.TimeUntilExpiry(rec.Token, now),
	}
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.metrics.Restores.WithLabelValues("restored").Inc()
	c.metrics.Authenticated.Set(1)
	c.logger.Info("session restored",
		"user", profile.Username,
		"credential", credential.Fingerprint(rec.Token),
		"remaining", credential.FormatRemaining(snapshot.TimeRemaining))
	c.publish(snapshot)
	c.syncMonitor()

	if c.verifyOnRestore {
		c.RefreshSession(ctx)
	}
	return c.State()
}

// RefreshSession asks the backend whether the held credential is still
// accepted. On success the profile is updated and the warning flag reset;
// on any failure the session is ended. Concurrent calls share one request.
func (c *Controller) RefreshSession(ctx context.Context) bool {
	v, _, _ := c.refresh.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx), nil
	})
	return v.(bool)
}

func (c *Controller) doRefresh(ctx context.Context) bool {
	c.mu.Lock()
	if !c.state.IsAuthenticated {
		c.mu.Unlock()
		return false
	}
	token, epoch, rememberMe := c.token, c.epoch, c.state.RememberMe
	c.mu.Unlock()

	profile, err := c.backend.Me(ctx)
	if err != nil {
		if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
			c.logger.Debug("refresh cancelled")
			return false
		}
		c.metrics.Refreshes.WithLabelValues("failed").Inc()
		c.metrics.Errors.WithLabelValues(string(errors.ErrCodeRefreshFailed)).Inc()
		c.logger.WithError(err).Warn("session refresh failed")
		// A 401 here has already ended the session through the signal bus,
		// which makes this a no-op.
		c.logout(ReasonRefreshFailed, token)
		return false
	}

	updated := profile.Clone()
	c.mu.Lock()
	if c.epoch != epoch || c.token != token || !c.state.IsAuthenticated {
		c.mu.Unlock()
		return false
	}
	c.store.Save(token, updated, rememberMe)
	c.state.User = &updated
	c.state.WarningShown = false
	c.state.TimeRemaining = credential.TimeUntilExpiry(token, c.now())
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.warnings.HideWarning()
	c.metrics.Refreshes.WithLabelValues("success").Inc()
	c.logger.Info("session refreshed",
		"credential", credential.Fingerprint(token),
		"remaining", credential.FormatRemaining(snapshot.TimeRemaining))
	c.notifier.Notify(Notice{Level: LevelInfo, Message: "Session refreshed"})
	c.publish(snapshot)
	c.syncMonitor()
	return true
}

// UpdateUser merges a partial profile into memory and storage. It returns
// false when no session is held.
func (c *Controller) UpdateUser(update domain.ProfileUpdate) bool {
	c.mu.Lock()
	if !c.state.IsAuthenticated || c.state.User == nil {
		c.mu.Unlock()
		return false
	}
	merged := update.Apply(*c.state.User)
	c.state.User = &merged
	c.store.UpdateProfile(merged)
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.publish(snapshot)
	return true
}

// HasPermission reports whether the current user may act in one of the
// given roles. Admins may always act; anonymous users never.
func (c *Controller) HasPermission(roles ...domain.Role) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsAuthenticated || c.state.User == nil {
		return false
	}
	return c.state.User.Role.Allows(roles...)
}

// Close stops polling and unsubscribes from the signal bus. The persisted
// session is kept for the next process.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.monitor.Stop()
	c.mu.Unlock()

	c.unsubscribe()
}

// syncMonitor points the monitor at the held credential. It must be called
// without c.mu held because the monitor's first check runs synchronously
// and may call back into the controller.
func (c *Controller) syncMonitor() {
	for {
		c.mu.Lock()
		token, epoch, active := c.token, c.epoch, c.state.IsAuthenticated && !c.closed
		c.mu.Unlock()

		if active {
			c.monitor.Start(token)
		} else {
			c.monitor.Stop()
		}

		c.mu.Lock()
		settled := c.epoch == epoch
		c.mu.Unlock()
		if settled {
			return
		}
	}
}

func (c *Controller) onMonitorEvent(ev monitor.Event) {
	c.mu.Lock()
	if !c.state.IsAuthenticated || ev.Token != c.token {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case monitor.EventExpired:
		c.mu.Unlock()
		c.logout(ReasonExpired, ev.Token)
		return

	case monitor.EventWarning:
		c.state.WarningShown = true
		c.state.TimeRemaining = ev.Remaining
		snapshot := c.state.clone()
		c.mu.Unlock()

		c.metrics.Warnings.Inc()
		c.metrics.Remaining.Set(ev.Remaining.Seconds())
		c.warnings.ShowWarning(WarningPrompt{
			TimeRemaining: ev.Remaining,
			Refresh:       c.RefreshSession,
			Logout:        func() { c.Logout(ReasonUser) },
		})
		c.publish(snapshot)

	default:
		c.state.TimeRemaining = ev.Remaining
		snapshot := c.state.clone()
		c.mu.Unlock()

		c.metrics.Remaining.Set(ev.Remaining.Seconds())
		c.publish(snapshot)
	}
}

func (c *Controller) onSignal(s authsignal.Signal) {
	c.metrics.AuthFailureSignals.WithLabelValues(strconv.Itoa(s.Status)).Inc()
	if !s.Unauthorized() {
		return
	}
	if c.logout(ReasonUnauthorized, "") {
		c.logger.Warn("server rejected credential", "method", s.Method, "path", s.Path)
	}
}

func (c *Controller) publish(s SessionState) {
	for _, fn := range c.observers {
		fn(s.clone())
	}
}
