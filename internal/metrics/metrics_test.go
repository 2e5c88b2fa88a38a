package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("expected metrics, got nil")
	}

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"LoginAttempts", m.LoginAttempts},
		{"LoginDuration", m.LoginDuration},
		{"Logouts", m.Logouts},
		{"Restores", m.Restores},
		{"Refreshes", m.Refreshes},
		{"Warnings", m.Warnings},
		{"Authenticated", m.Authenticated},
		{"Remaining", m.Remaining},
		{"AuthFailureSignals", m.AuthFailureSignals},
		{"Errors", m.Errors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s is nil", tt.name)
			}
		})
	}
}

func TestSessionMetrics(t *testing.T) {
	m := Nop()

	m.LoginAttempts.WithLabelValues("success").Inc()
	m.Logouts.WithLabelValues("expired").Inc()
	m.Logouts.WithLabelValues("expired").Inc()
	m.Authenticated.Set(1)
	m.Remaining.Set(180)

	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")); got != 1 {
		t.Errorf("login attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Logouts.WithLabelValues("expired")); got != 2 {
		t.Errorf("expired logouts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Remaining); got != 180 {
		t.Errorf("remaining = %v, want 180", got)
	}
}

func TestMetricsExport(t *testing.T) {
	reg, m := NewRegistry()

	m.Logouts.WithLabelValues("unauthorized").Inc()
	m.AuthFailureSignals.WithLabelValues("401").Inc()

	handler := HandlerFor(reg, promhttp.HandlerOpts{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %v, want %v", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, want := range []string{
		"sciencepoint_logouts_total",
		`reason="unauthorized"`,
		"sciencepoint_auth_failure_signals_total",
		`status="401"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output does not contain %s", want)
		}
	}
}

func TestProcessRegistry(t *testing.T) {
	reg, _ := NewProcessRegistry()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "go_") {
			found = true
			break
		}
	}
	if !found {
		t.Error("runtime collector not registered")
	}
}

func TestMultipleRegistries(t *testing.T) {
	_, m1 := NewRegistry()
	_, m2 := NewRegistry()

	m1.Warnings.Inc()

	if got := testutil.ToFloat64(m2.Warnings); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
