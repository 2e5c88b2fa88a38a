package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sciencepoint/internal/domain"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
	"github.com/felixgeelhaar/sciencepoint/internal/session"
	"github.com/felixgeelhaar/sciencepoint/internal/storage"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "healthy", StatusHealthy.String())
	assert.Equal(t, "degraded", StatusDegraded.String())
	assert.Equal(t, "unhealthy", StatusUnhealthy.String())
}

func TestResultDetails(t *testing.T) {
	r := Healthy("ok")
	require.Same(t, r, r.WithDetail("a", 1))
	r.WithDetail("b", "two")
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, r.Details)
}

type proberFunc func(ctx context.Context) (*platform.HealthStatus, error)

func (f proberFunc) Health(ctx context.Context) (*platform.HealthStatus, error) { return f(ctx) }

func TestAPIChecker(t *testing.T) {
	tests := []struct {
		name   string
		prober proberFunc
		want   Status
	}{
		{"healthy", func(context.Context) (*platform.HealthStatus, error) {
			return &platform.HealthStatus{Status: "healthy"}, nil
		}, StatusHealthy},
		{"degraded", func(context.Context) (*platform.HealthStatus, error) {
			return &platform.HealthStatus{Status: "maintenance"}, nil
		}, StatusDegraded},
		{"unreachable", func(context.Context) (*platform.HealthStatus, error) {
			return nil, errors.New("connection refused")
		}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAPIChecker(tt.prober, "http://localhost:8001")
			r := c.Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, "http://localhost:8001", r.Details["url"])
		})
	}
}

func TestStorageChecker(t *testing.T) {
	mem := storage.NewMemory()
	c := NewStorageChecker(mem, "memory")

	r := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Zero(t, mem.Len(), "probe key must be removed")

	mem.FailWrites(true)
	r = c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Contains(t, r.Message, "not writable")

	mem.FailWrites(false)
	mem.FailReads(true)
	r = c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Contains(t, r.Message, "not readable")
}

var epoch = time.Unix(1_700_000_000, 0)

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ravi",
		"exp": epoch.Add(d).Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func TestSessionChecker(t *testing.T) {
	profile := domain.Profile{ID: 7, Username: "ravi", Role: domain.RoleStudent}
	now := func() time.Time { return epoch }

	tests := []struct {
		name    string
		token   string
		want    Status
		message string
	}{
		{"none", "", StatusHealthy, "no saved session"},
		{"valid", tokenExpiringIn(t, time.Hour), StatusHealthy, "saved session is valid"},
		{"expiring", tokenExpiringIn(t, 2*time.Minute), StatusDegraded, "saved session expires soon"},
		{"expired", tokenExpiringIn(t, -time.Minute), StatusDegraded, "saved session has expired; log in again"},
		{"undecodable", "x", StatusDegraded, "saved session has expired; log in again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewStore(storage.NewMemory(), nil)
			if tt.token != "" {
				store.Save(tt.token, profile, false)
			}

			r := NewSessionChecker(store, 5*time.Minute, now).Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, tt.message, r.Message)
			if tt.token != "" {
				assert.Equal(t, "ravi", r.Details["user"])
				assert.NotContains(t, r.Details["credential"], tt.token)
				require.NotNil(t, store.Load(), "checking must not clear the session")
			}
		})
	}
}
