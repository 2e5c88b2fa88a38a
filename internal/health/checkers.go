package health

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/sciencepoint/internal/credential"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
	"github.com/felixgeelhaar/sciencepoint/internal/session"
	"github.com/felixgeelhaar/sciencepoint/internal/storage"
)

// Prober reports the backend's own health.
type Prober interface {
	Health(ctx context.Context) (*platform.HealthStatus, error)
}

// APIChecker asks the backend for its status.
type APIChecker struct {
	prober  Prober
	baseURL string
}

// NewAPIChecker checks the backend behind p.
func NewAPIChecker(p Prober, baseURL string) *APIChecker {
	return &APIChecker{prober: p, baseURL: baseURL}
}

// Name implements Checker.
func (c *APIChecker) Name() string { return "backend-api" }

// Check implements Checker.
func (c *APIChecker) Check(ctx context.Context) *Result {
	status, err := c.prober.Health(ctx)
	if err != nil {
		return Unhealthy("backend unreachable").
			WithDetail("url", c.baseURL).
			WithDetail("error", err.Error())
	}
	if !status.Healthy() {
		return Degraded(fmt.Sprintf("backend reports %q", status.Status)).WithDetail("url", c.baseURL)
	}
	return Healthy("backend is healthy").WithDetail("url", c.baseURL)
}

// probeKey is written and removed again by StorageChecker.
const probeKey = "healthcheck"

// StorageChecker round-trips a value through the session storage.
type StorageChecker struct {
	storage storage.Storage
	backend string
}

// NewStorageChecker checks s, labelled with its backend name.
func NewStorageChecker(s storage.Storage, backend string) *StorageChecker {
	return &StorageChecker{storage: s, backend: backend}
}

// Name implements Checker.
func (c *StorageChecker) Name() string { return "session-store" }

// Check implements Checker.
func (c *StorageChecker) Check(_ context.Context) *Result {
	want := time.Now().UTC().Format(time.RFC3339Nano)
	if err := c.storage.Set(probeKey, want); err != nil {
		return Unhealthy("session store is not writable").
			WithDetail("backend", c.backend).
			WithDetail("error", err.Error())
	}
	defer func() { _ = c.storage.Remove(probeKey) }()

	got, ok, err := c.storage.Get(probeKey)
	switch {
	case err != nil:
		return Unhealthy("session store is not readable").
			WithDetail("backend", c.backend).
			WithDetail("error", err.Error())
	case !ok || got != want:
		return Unhealthy("session store lost a write").WithDetail("backend", c.backend)
	}
	return Healthy("session store is readable and writable").WithDetail("backend", c.backend)
}

// SessionChecker reports on the saved credential without touching it.
type SessionChecker struct {
	store     *session.Store
	now       func() time.Time
	threshold time.Duration
}

// NewSessionChecker inspects the record in store. The session counts as
// degraded within threshold of expiry.
func NewSessionChecker(store *session.Store, threshold time.Duration, now func() time.Time) *SessionChecker {
	if now == nil {
		now = time.Now
	}
	return &SessionChecker{store: store, now: now, threshold: threshold}
}

// Name implements Checker.
func (c *SessionChecker) Name() string { return "saved-session" }

// Check implements Checker.
func (c *SessionChecker) Check(_ context.Context) *Result {
	rec := c.store.Load()
	if rec == nil {
		return Healthy("no saved session")
	}

	now := c.now()
	remaining := credential.TimeUntilExpiry(rec.Token, now)
	r := func(res *Result) *Result {
		return res.
			WithDetail("user", rec.Profile.Username).
			WithDetail("credential", credential.Fingerprint(rec.Token)).
			WithDetail("expires_in", credential.FormatRemaining(remaining))
	}

	switch {
	case credential.IsExpired(rec.Token, now):
		return r(Degraded("saved session has expired; log in again"))
	case credential.IsExpiringSoon(rec.Token, now, c.threshold):
		return r(Degraded("saved session expires soon"))
	default:
		return r(Healthy("saved session is valid"))
	}
}
