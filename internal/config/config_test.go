package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIURL, EnvLogLevel, EnvPassphrase, EnvRedisAddr} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:8001", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Session.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Session.WarningThreshold)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "warn", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://api.example.edu
session:
  warning_threshold: 2m
storage:
  backend: memory
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.edu", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Session.WarningThreshold)
	assert.Equal(t, 30*time.Second, cfg.Session.PollInterval)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("api: [unclosed"), 0o600))
	_, err := Load(broken)
	assert.Equal(t, errors.ErrCodeConfigRead, errors.CodeOf(err))

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("storage:\n  backend: s3\n"), 0o600))
	_, err = Load(invalid)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIURL, "http://backend:9000")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvPassphrase, "s3cret")
	t.Setenv(EnvRedisAddr, "redis:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "s3cret", cfg.Storage.Passphrase)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
}

func TestSaveRoundTripKeepsPassphraseOut(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Storage.Passphrase = "never-written"
	require.NoError(t, cfg.Set("session.poll_interval", "45s"))
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")
	assert.Contains(t, string(data), "poll_interval: 45s")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, loaded.Session.PollInterval)
}

func TestGetSet(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"api.base_url", "https://api.example.edu"},
		{"api.timeout", "15s"},
		{"session.poll_interval", "1m0s"},
		{"session.warning_threshold", "10m0s"},
		{"session.verify_on_restore", "true"},
		{"storage.backend", "redis"},
		{"storage.path", "/tmp/session.json"},
		{"storage.redis.addr", "cache:6379"},
		{"storage.redis.db", "3"},
		{"storage.redis.prefix", "sp"},
		{"logging.level", "debug"},
		{"logging.format", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Set(tt.key, tt.value))
			got, err := cfg.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestSetRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"api.base_url", "not a url"},
		{"api.timeout", "soon"},
		{"session.poll_interval", "0s"},
		{"session.verify_on_restore", "maybe"},
		{"storage.backend", "s3"},
		{"storage.redis.db", "zero"},
		{"logging.level", "loud"},
		{"logging.format", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			before, _ := cfg.Get(tt.key)

			err := cfg.Set(tt.key, tt.value)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))

			after, _ := cfg.Get(tt.key)
			assert.Equal(t, before, after)
		})
	}
}

func TestUnknownKey(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("providers.default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration key")
	assert.Error(t, cfg.Set("providers.default", "x"))
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "session.warning_threshold")
}

func TestSessionPath(t *testing.T) {
	t.Setenv(EnvHome, "/srv/sp")

	cfg := Default()
	path, err := cfg.SessionPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/sp", "session.json"), path)

	cfg.Storage.Path = "/elsewhere/s.json"
	path, err = cfg.SessionPath()
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/s.json", path)
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	lc := cfg.LoggerConfig()
	assert.Equal(t, log.LevelDebug, lc.Level)
	assert.Equal(t, log.FormatJSON, lc.Format)
}
