package api

import (
	"context"
	"net/http"
	"time"
)

// TokenPair is the access/refresh token pair returned by login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// LoginRequest is the credentials payload for Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges an email/password pair for tokens. Login does not use the
// client's token source; it is the call that produces the tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	// Temporarily drop the token source so a stale stored token cannot
	// poison a fresh login.
	login := &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		userAgent:  c.userAgent,
		logger:     c.logger,
	}

	var pair TokenPair
	if err := login.do(ctx, http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: password}, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Refresh exchanges a refresh token for a fresh token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	refresh := &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		userAgent:  c.userAgent,
		logger:     c.logger,
	}

	body := struct {
		RefreshToken string `json:"refresh_token"`
	}{RefreshToken: refreshToken}

	var pair TokenPair
	if err := refresh.do(ctx, http.MethodPost, "/api/auth/refresh", body, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout invalidates the current session server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
