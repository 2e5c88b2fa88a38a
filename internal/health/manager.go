package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/sciencepoint/internal/log"
)

// DefaultTimeout bounds each check.
const DefaultTimeout = 5 * time.Second

// Manager runs checks in parallel and aggregates the results.
type Manager struct {
	checkers []Checker
	timeout  time.Duration
}

// NewManager creates a Manager for checkers.
func NewManager(checkers ...Checker) *Manager {
	return &Manager{checkers: checkers, timeout: DefaultTimeout}
}

// WithTimeout sets the per-check timeout.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	if timeout > 0 {
		m.timeout = timeout
	}
	return m
}

// Add registers another checker.
func (m *Manager) Add(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Check runs every checker and returns the results in registration order.
// A checker that overruns its timeout is reported unhealthy.
func (m *Manager) Check(ctx context.Context) []*Result {
	results := make([]*Result, len(m.checkers))

	var g errgroup.Group
	for i, c := range m.checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			start := time.Now()
			r := c.Check(checkCtx)
			if r == nil {
				r = Unhealthy("check returned no result")
			}
			if checkCtx.Err() != nil && r.Status == StatusHealthy {
				r = Unhealthy("check timed out").WithDetail("timeout", m.timeout.String())
			}
			if r.Latency == 0 {
				r.Latency = time.Since(start)
			}
			r.Name = c.Name()
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	logger := log.DefaultLogger().WithComponent("health")
	for _, r := range results {
		logger.Debug("check finished", "check", r.Name, "status", string(r.Status), "latency", r.Latency)
	}
	return results
}

// Overall folds results into one status: unhealthy beats degraded beats
// healthy.
func Overall(results []*Result) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
