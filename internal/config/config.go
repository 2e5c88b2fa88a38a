// Package config loads the client configuration from
// ~/.sciencepoint/config.yaml and the environment.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
)

// Environment variables that override the file.
const (
	EnvHome       = "SCIENCEPOINT_HOME"
	EnvAPIURL     = "SCIENCEPOINT_API_URL"
	EnvLogLevel   = "SCIENCEPOINT_LOG_LEVEL"
	EnvPassphrase = "SCIENCEPOINT_STORE_PASSPHRASE"
	EnvRedisAddr  = "SCIENCEPOINT_REDIS_ADDR"
)

// Storage backends
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the client configuration.
type Config struct {
	API     APIConfig     `yaml:"api" json:"api"`
	Session SessionConfig `yaml:"session" json:"session"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type SessionConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval"`
	WarningThreshold time.Duration `yaml:"warning_threshold" json:"warning_threshold"`
	VerifyOnRestore  bool          `yaml:"verify_on_restore" json:"verify_on_restore"`
}

type StorageConfig struct {
	Backend string      `yaml:"backend" json:"backend"` // "file", "redis", "memory"
	Path    string      `yaml:"path,omitempty" json:"path,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`

	// Passphrase encrypts the session file. It only ever comes from the
	// environment.
	Passphrase string `yaml:"-" json:"-"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" json:"format"` // "text", "json"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8001",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			PollInterval:     30 * time.Second,
			WarningThreshold: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "sciencepoint:session",
			},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// HomeDir returns the directory holding configuration and session data.
func HomeDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".sciencepoint"), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigRead, "failed to parse config", err).
				WithSuggestion(fmt.Sprintf("Fix or remove %s", path))
		}
	case stderrors.Is(err, fs.ErrNotExist):
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigRead, "failed to read config", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigWrite, "failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeConfigWrite, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeConfigWrite, "failed to write config", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvPassphrase); ok {
		c.Storage.Passphrase = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Storage.Redis.Addr = v
		c.Storage.Backend = BackendRedis
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewConfigInvalidError(fmt.Sprintf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		return errors.NewConfigInvalidError("api.timeout must be positive")
	}
	if c.Session.PollInterval <= 0 {
		return errors.NewConfigInvalidError("session.poll_interval must be positive")
	}
	if c.Session.WarningThreshold <= 0 {
		return errors.NewConfigInvalidError("session.warning_threshold must be positive")
	}
	switch c.Storage.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("storage.backend %q (supported: file, redis, memory)", c.Storage.Backend))
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	if _, err := log.ParseFormat(c.Logging.Format); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	return nil
}

// SessionPath returns where the file backend keeps the session.
func (c *Config) SessionPath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// LoggerConfig turns the logging section into a log.Config.
func (c *Config) LoggerConfig() log.Config {
	lc := log.DefaultConfig()
	if level, err := log.ParseLevel(c.Logging.Level); err == nil {
		lc.Level = level
	}
	if format, err := log.ParseFormat(c.Logging.Format); err == nil {
		lc.Format = format
	}
	return lc
}

type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

var fields = map[string]field{
	"api.base_url": {
		get: func(c *Config) string { return c.API.BaseURL },
		set: func(c *Config, v string) error { c.API.BaseURL = v; return nil },
	},
	"api.timeout": {
		get: func(c *Config) string { return c.API.Timeout.String() },
		set: func(c *Config, v string) error { return setDuration(&c.API.Timeout, v) },
	},
	"session.poll_interval": {
		get: func(c *Config) string { return c.Session.PollInterval.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Session.PollInterval, v) },
	},
	"session.warning_threshold": {
		get: func(c *Config) string { return c.Session.WarningThreshold.String() },
		set: func(c *Config, v string) error { return setDuration(&c.Session.WarningThreshold, v) },
	},
	"session.verify_on_restore": {
		get: func(c *Config) string { return strconv.FormatBool(c.Session.VerifyOnRestore) },
		set: func(c *Config, v string) error { return setBool(&c.Session.VerifyOnRestore, v) },
	},
	"storage.backend": {
		get: func(c *Config) string { return c.Storage.Backend },
		set: func(c *Config, v string) error { c.Storage.Backend = strings.ToLower(v); return nil },
	},
	"storage.path": {
		get: func(c *Config) string { return c.Storage.Path },
		set: func(c *Config, v string) error { c.Storage.Path = v; return nil },
	},
	"storage.redis.addr": {
		get: func(c *Config) string { return c.Storage.Redis.Addr },
		set: func(c *Config, v string) error { c.Storage.Redis.Addr = v; return nil },
	},
	"storage.redis.password": {
		get: func(c *Config) string { return c.Storage.Redis.Password },
		set: func(c *Config, v string) error { c.Storage.Redis.Password = v; return nil },
	},
	"storage.redis.db": {
		get: func(c *Config) string { return strconv.Itoa(c.Storage.Redis.DB) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer %q", v)
			}
			c.Storage.Redis.DB = n
			return nil
		},
	},
	"storage.redis.prefix": {
		get: func(c *Config) string { return c.Storage.Redis.Prefix },
		set: func(c *Config, v string) error { c.Storage.Redis.Prefix = v; return nil },
	},
	"logging.level": {
		get: func(c *Config) string { return c.Logging.Level },
		set: func(c *Config, v string) error { c.Logging.Level = v; return nil },
	},
	"logging.format": {
		get: func(c *Config) string { return c.Logging.Format },
		set: func(c *Config, v string) error { c.Logging.Format = v; return nil },
	},
}

// Keys lists the keys accepted by Get and Set.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the value of a dotted key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", unknownKey(key)
	}
	return f.get(c), nil
}

// Set assigns a dotted key and re-validates. On error c is unchanged.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return unknownKey(key)
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return errors.NewConfigInvalidError(fmt.Sprintf("%s: %v", key, err))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func unknownKey(key string) error {
	return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Known keys: " + strings.Join(Keys(), ", "))
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", v)
	}
	*dst = b
	return nil
}
