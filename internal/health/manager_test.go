package health

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sciencepoint/internal/log"
)

// mockChecker is a test double for health checks
type mockChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) *Result {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Unhealthy("check cancelled").WithDetail("error", ctx.Err().Error())
		}
	}
	return m.result
}

func TestManagerKeepsRegistrationOrder(t *testing.T) {
	m := NewManager(
		&mockChecker{name: "first", result: Healthy("ok")},
		&mockChecker{name: "second", result: Degraded("meh"), delay: 20 * time.Millisecond},
	)
	m.Add(&mockChecker{name: "third", result: Unhealthy("broken")})

	results := m.Check(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Name)
	assert.Equal(t, "second", results[1].Name)
	assert.Equal(t, "third", results[2].Name)
	assert.Equal(t, StatusDegraded, results[1].Status)
	assert.Positive(t, results[1].Latency)
}

func TestManagerTimeout(t *testing.T) {
	m := NewManager(&mockChecker{name: "slow", result: Healthy("ok"), delay: time.Second}).
		WithTimeout(20 * time.Millisecond)

	start := time.Now()
	results := m.Check(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusUnhealthy, results[0].Status)
}

func TestManagerNilResult(t *testing.T) {
	results := NewManager(&mockChecker{name: "broken"}).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.Equal(t, "broken", results[0].Name)
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results []*Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []*Result{Healthy("a"), Healthy("b")}, StatusHealthy},
		{"one degraded", []*Result{Healthy("a"), Degraded("b")}, StatusDegraded},
		{"unhealthy wins", []*Result{Degraded("a"), Unhealthy("b"), Healthy("c")}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.results))
		})
	}
}

func TestManagerLogsThroughProcessLogger(t *testing.T) {
	var buf bytes.Buffer
	log.SetDefaultLogger(log.New(log.Config{Output: &buf, Level: log.LevelDebug}))
	t.Cleanup(func() { log.SetDefaultLogger(nil) })

	NewManager(&mockChecker{name: "backend-api", result: Degraded("slow")}).Check(context.Background())

	assert.Contains(t, buf.String(), "check=backend-api")
	assert.Contains(t, buf.String(), "status=degraded")
}
