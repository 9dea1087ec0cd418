// Package api is the REST client for the IroBot backend: auth, conversation
// and feedback CRUD, user/category/document administration, the pricing
// configuration key-value store, and notification management. Streaming
// endpoints are not handled here; those belong to pkg/chat and pkg/notify.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/logger"
)

const defaultUserAgent = "irobot-go"

// Client talks to the IroBot REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     credentials.Source
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client created with NewClient.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. The default client carries a
// 30 second timeout; REST calls are request/response, never streaming.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource supplies credentials. The token is resolved per request
// and sent as an Authorization bearer header.
func WithTokenSource(src credentials.Source) Option {
	return func(c *Client) {
		c.tokens = src
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a REST client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		userAgent: defaultUserAgent,
		logger:    logger.Nop(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues one JSON request/response round trip. A nil in skips the request
// body; a nil out discards the response body. Non-2xx statuses are returned
// as *Error, with 401 additionally matching ErrUnauthorized so callers can
// refresh and retry.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolving token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// pathEscape escapes one path segment.
func pathEscape(s string) string {
	return url.PathEscape(s)
}
