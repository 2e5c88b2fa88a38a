package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sciencepoint/internal/domain"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
	"github.com/felixgeelhaar/sciencepoint/internal/tui"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the root command with args against a fresh flag set.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(withNoColor(args))
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// withNoColor adds --no-color ahead of any "--" terminator so it is still
// parsed as a flag.
func withNoColor(args []string) []string {
	for i, a := range args {
		if a == "--" {
			out := append([]string{}, args[:i]...)
			out = append(out, "--no-color")
			return append(out, args[i:]...)
		}
	}
	return append(append([]string{}, args...), "--no-color")
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// backend is a stand-in for the coaching-center API.
type backend struct {
	*httptest.Server
	token    string
	profile  domain.Profile
	health   string
	rejectMe atomic.Bool
	logins   atomic.Int32
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{
		token:   signedToken(t, time.Hour),
		profile: domain.Profile{ID: 7, Username: "ravi", FullName: "Ravi Kumar", Role: domain.RoleStudent, IsActive: true, RollNumber: "R-12"},
		health:  "healthy",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.logins.Add(1)
		var req platform.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username != "ravi" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(platform.LoginResponse{AccessToken: b.token, TokenType: "bearer", User: b.profile})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		if b.rejectMe.Load() || r.Header.Get("Authorization") != "Bearer "+b.token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(b.profile)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(platform.HealthStatus{Status: b.health})
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ravi",
		"role": "student",
		"exp":  time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

// setup isolates the config home and points the CLI at b.
func setup(t *testing.T, b *backend) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("SCIENCEPOINT_HOME", home)
	t.Setenv("SCIENCEPOINT_API_URL", b.URL)
	t.Setenv("SCIENCEPOINT_STORE_PASSPHRASE", "")
	t.Setenv("SCIENCEPOINT_REDIS_ADDR", "")
	t.Setenv("SCIENCEPOINT_LOG_LEVEL", "")

	origPrompt, origShould := promptLogin, shouldPrompt
	shouldPrompt = func() bool { return false }
	t.Cleanup(func() { promptLogin, shouldPrompt = origPrompt, origShould })
	return home
}

// stubPrompt makes the login form return fields.
func stubPrompt(t *testing.T, fields tui.LoginFields) *int {
	t.Helper()
	calls := 0
	shouldPrompt = func() bool { return true }
	promptLogin = func(prefilled tui.LoginFields) (tui.LoginFields, error) {
		calls++
		if fields.Username == "" {
			fields.Username = prefilled.Username
		}
		return fields, nil
	}
	return &calls
}

func login(t *testing.T) {
	t.Helper()
	res := execute(t, "secret\n", "auth", "login", "-u", "ravi", "--password-stdin")
	require.NoError(t, res.err)
}
