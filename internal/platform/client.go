// Package platform is the REST client for the coaching-center backend.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/sciencepoint/internal/authsignal"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
	"github.com/felixgeelhaar/sciencepoint/internal/version"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// ErrNoCredential is returned when an authorized request is attempted
// without a credential.
var ErrNoCredential = errors.New("no credential available")

// Publisher receives authorization failures seen on authorized requests.
type Publisher interface {
	Publish(authsignal.Signal)
}

// TokenFunc adapts a function returning the current bearer token into an
// oauth2.TokenSource.
type TokenFunc func() string

// Token implements oauth2.TokenSource.
func (f TokenFunc) Token() (*oauth2.Token, error) {
	t := f()
	if t == "" {
		return nil, ErrNoCredential
	}
	return &oauth2.Token{AccessToken: t, TokenType: "Bearer"}, nil
}

// Client is the backend API client
type Client struct {
	baseURL   string
	timeout   time.Duration
	base      http.RoundTripper
	tokens    oauth2.TokenSource
	publisher Publisher
	logger    *log.Logger
	userAgent string

	plain  *http.Client
	authed *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource sets where authorized requests get their bearer token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithPublisher sets where 401 responses to authorized requests are reported.
func WithPublisher(p Publisher) Option {
	return func(c *Client) { c.publisher = p }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.base = rt
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a new API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		base:      http.DefaultTransport,
		logger:    log.DefaultLogger(),
		userAgent: version.GetInfo().UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("platform")

	c.plain = &http.Client{Timeout: c.timeout, Transport: c.base}
	source := c.tokens
	if source == nil {
		source = TokenFunc(func() string { return "" })
	}
	c.authed = &http.Client{
		Timeout:   c.timeout,
		Transport: &oauth2.Transport{Source: source, Base: c.base},
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// doRequest performs an HTTP request. Authorized requests carry the bearer
// token and report 401 responses to the publisher.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, authorized bool) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.plain
	if authorized {
		httpClient = c.authed
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			return nil, ErrNoCredential
		}
		c.logger.WithError(err).Debug("request failed",
			"method", method, "path", path, "request_id", requestID)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start).String())

	if authorized && resp.StatusCode == http.StatusUnauthorized && c.publisher != nil {
		c.publisher.Publish(authsignal.Signal{
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
			At:     time.Now(),
		})
	}

	return resp, nil
}

// GetJSON performs an authorized GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return err
	}
	return parseResponse(resp, out)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status" yaml:"status"`
}

// Healthy reports whether the backend declared itself healthy.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// Health probes the backend.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil, false)
	if err != nil {
		return nil, err
	}
	var h HealthStatus
	if err := parseResponse(resp, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
