package stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/sse"
)

// connConfig collects the construction-time settings for a Conn.
type connConfig struct {
	method      string
	body        []byte
	contentType string
	header      http.Header
	client      *http.Client

	heartbeat time.Duration

	tokens       credentials.Source
	tokenInQuery bool
	queryParam   string

	logger *slog.Logger

	onEvent      func(sse.Event)
	onState      func(State)
	onDisconnect func(Disconnect)
}

// Option configures a Conn created with New.
type Option func(*connConfig)

// WithMethod sets the HTTP method. Defaults to GET; chat generation uses
// POST with a body.
func WithMethod(method string) Option {
	return func(c *connConfig) {
		c.method = method
	}
}

// WithBody sets the request body and its content type. The body is kept as
// bytes so every open builds a fresh reader.
func WithBody(contentType string, body []byte) Option {
	return func(c *connConfig) {
		c.contentType = contentType
		c.body = body
	}
}

// WithHeader adds a request header applied to every open.
func WithHeader(key, value string) Option {
	return func(c *connConfig) {
		if c.header == nil {
			c.header = http.Header{}
		}
		c.header.Add(key, value)
	}
}

// WithHTTPClient overrides the HTTP client. The default client carries no
// overall timeout, which is deliberate: an event stream stays open as long
// as heartbeats keep arriving.
func WithHTTPClient(client *http.Client) Option {
	return func(c *connConfig) {
		c.client = client
	}
}

// WithHeartbeatTimeout sets the idle window after which a silent connection
// is failed with a TimeoutError. Zero disables the watchdog. Defaults to
// DefaultHeartbeatTimeout.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(c *connConfig) {
		c.heartbeat = d
	}
}

// WithTokenSource supplies credentials. The token is resolved once per open
// and sent as an Authorization bearer header.
func WithTokenSource(src credentials.Source) Option {
	return func(c *connConfig) {
		c.tokens = src
		c.tokenInQuery = false
	}
}

// WithTokenInQuery supplies credentials for endpoints reached by plain GET
// subscriptions, where the token travels as a query parameter instead of a
// header. An empty param selects "token".
func WithTokenInQuery(src credentials.Source, param string) Option {
	return func(c *connConfig) {
		c.tokens = src
		c.tokenInQuery = true
		if param != "" {
			c.queryParam = param
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *connConfig) {
		c.logger = logger
	}
}

// WithEventHandler registers the handler invoked for every assembled event,
// in arrival order, from the read loop.
func WithEventHandler(fn func(sse.Event)) Option {
	return func(c *connConfig) {
		c.onEvent = fn
	}
}

// WithStateHandler registers an observer of state transitions.
func WithStateHandler(fn func(State)) Option {
	return func(c *connConfig) {
		c.onState = fn
	}
}

// WithDisconnectHandler registers the handler invoked once per opened
// attempt when it terminates. Attempts torn down by Close report nothing;
// the caller initiated those.
func WithDisconnectHandler(fn func(Disconnect)) Option {
	return func(c *connConfig) {
		c.onDisconnect = fn
	}
}
