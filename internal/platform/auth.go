package platform

import (
	"context"
	"errors"
	"net/http"

	"github.com/felixgeelhaar/sciencepoint/internal/domain"
)

// ErrEmptyToken is returned when a login succeeds without a token.
var ErrEmptyToken = errors.New("login response did not include an access token")

// LoginRequest represents a login request
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        domain.Profile `json:"user"`
}

// Login exchanges a username and password for a credential. A 401 here
// means bad credentials and is not reported as a session failure.
func (c *Client) Login(ctx context.Context, username, password string, rememberMe bool) (*LoginResponse, error) {
	req := LoginRequest{
		Username:   username,
		Password:   password,
		RememberMe: rememberMe,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", req, false)
	if err != nil {
		return nil, err
	}

	var loginResp LoginResponse
	if err := parseResponse(resp, &loginResp); err != nil {
		return nil, err
	}
	if loginResp.AccessToken == "" {
		return nil, ErrEmptyToken
	}

	return &loginResp, nil
}

// Me returns the profile of the credential's owner.
func (c *Client) Me(ctx context.Context) (*domain.Profile, error) {
	var user domain.Profile
	if err := c.GetJSON(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}
