package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/logger"
	"github.com/irobothq/irobot/pkg/sse"
	"github.com/irobothq/irobot/pkg/stream"
)

// Push endpoints served by the backend. Subscription streams are plain GETs,
// so the token travels as a query parameter.
func EndpointNotifications(baseURL string) string {
	return baseURL + "/api/events/notifications"
}

func EndpointAdmin(baseURL string) string {
	return baseURL + "/api/events/admin"
}

func EndpointDashboard(baseURL string) string {
	return baseURL + "/api/events/dashboard"
}

func EndpointDocumentStatus(baseURL, documentID string) string {
	return baseURL + "/api/events/documents/" + url.PathEscape(documentID)
}

// Handler receives one dispatched event. Handlers run on the stream's read
// goroutine, in arrival order; a slow handler backpressures the stream.
type Handler func(Event)

// Consumer subscribes to one push endpoint and dispatches typed events to
// registered handlers. A dropped connection is retried on the reconnection
// schedule until the budget is exhausted; an explicit Disconnect is final
// until the caller reconnects.
type Consumer struct {
	endpoint string
	log      *slog.Logger

	conn  *stream.Conn
	recon *stream.Reconnector

	mu       sync.Mutex
	ctx      context.Context
	handlers map[string][]Handler
	anyFns   []Handler
	stateFns []func(stream.State)
	downFns  []func(error)
	lastErr  error
}

type consumerConfig struct {
	client    *http.Client
	tokens    credentials.Source
	heartbeat time.Duration
	policy    stream.Policy
	logger    *slog.Logger
}

// ConsumerOption configures a Consumer created with NewConsumer.
type ConsumerOption func(*consumerConfig)

// WithHTTPClient overrides the HTTP client used for the subscription.
func WithHTTPClient(client *http.Client) ConsumerOption {
	return func(c *consumerConfig) {
		c.client = client
	}
}

// WithTokenSource supplies the credential source. The token is sent as a
// query parameter on each open.
func WithTokenSource(src credentials.Source) ConsumerOption {
	return func(c *consumerConfig) {
		c.tokens = src
	}
}

// WithHeartbeatTimeout sets the idle window for the underlying connection.
func WithHeartbeatTimeout(d time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		c.heartbeat = d
	}
}

// WithPolicy sets the reconnection schedule.
func WithPolicy(p stream.Policy) ConsumerOption {
	return func(c *consumerConfig) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ConsumerOption {
	return func(c *consumerConfig) {
		c.logger = log
	}
}

// NewConsumer builds a Consumer for one push endpoint. Nothing connects
// until Connect is called.
func NewConsumer(endpoint string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		client:    &http.Client{},
		heartbeat: stream.DefaultHeartbeatTimeout,
		policy:    stream.DefaultPolicy(),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Consumer{
		endpoint: endpoint,
		log:      cfg.logger,
		recon:    stream.NewReconnector(cfg.policy),
		handlers: make(map[string][]Handler),
	}

	connOpts := []stream.Option{
		stream.WithHTTPClient(cfg.client),
		stream.WithHeartbeatTimeout(cfg.heartbeat),
		stream.WithLogger(cfg.logger),
		stream.WithEventHandler(c.handleEvent),
		stream.WithStateHandler(c.handleState),
		stream.WithDisconnectHandler(c.handleDisconnect),
	}
	if cfg.tokens != nil {
		connOpts = append(connOpts, stream.WithTokenInQuery(cfg.tokens, "token"))
	}
	c.conn = stream.New(endpoint, connOpts...)

	return c
}

// On registers a handler for one event name. Multiple handlers for the same
// name all run, in registration order.
func (c *Consumer) On(name string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = append(c.handlers[name], h)
}

// OnAny registers a handler that receives every event regardless of name,
// after the name-specific handlers.
func (c *Consumer) OnAny(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anyFns = append(c.anyFns, h)
}

// OnStateChange registers an observer of connection state transitions.
func (c *Consumer) OnStateChange(fn func(stream.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// OnDown registers a handler invoked once when the retry budget is spent
// and the consumer gives up. The error is an *stream.ExhaustedError.
func (c *Consumer) OnDown(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downFns = append(c.downFns, fn)
}

// Connect opens the subscription. ctx scopes the whole subscription,
// automatic retries included. Returns stream.ErrActive if already connected.
func (c *Consumer) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.lastErr = nil
	c.mu.Unlock()

	if err := c.conn.Open(ctx); err != nil {
		if errors.Is(err, stream.ErrActive) {
			return err
		}
		return c.retryAfter(err)
	}
	return nil
}

// Disconnect closes the subscription and cancels any pending retry. No
// further events or retries follow until Connect or Reconnect.
func (c *Consumer) Disconnect() {
	c.recon.Stop()
	c.conn.Close()
}

// Reconnect tears down any current connection, restores the full retry
// budget and connects again.
func (c *Consumer) Reconnect(ctx context.Context) error {
	c.recon.Stop()
	c.conn.Close()
	c.recon.Reset()
	return c.Connect(ctx)
}

// State returns the underlying connection state.
func (c *Consumer) State() stream.State {
	return c.conn.State()
}

// Err returns the terminal error, if the consumer has given up.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// handleEvent decodes one wire event and fans it out.
func (c *Consumer) handleEvent(ev sse.Event) {
	event := decodeEvent(ev.Name, ev.Data, time.Now())

	c.mu.Lock()
	named := c.handlers[event.Name]
	any := c.anyFns
	c.mu.Unlock()

	for _, h := range named {
		h(event)
	}
	for _, h := range any {
		h(event)
	}
}

func (c *Consumer) handleState(s stream.State) {
	if s == stream.StateOpen {
		c.recon.Reset()
	}

	c.mu.Lock()
	fns := c.stateFns
	c.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// handleDisconnect is invoked once per opened attempt that terminates.
// Intentional closes stop here; anything else goes through the retry
// schedule, since a subscription stream has no natural end.
func (c *Consumer) handleDisconnect(d stream.Disconnect) {
	if d.Intentional {
		return
	}
	cause := d.Cause
	if cause == nil {
		cause = fmt.Errorf("subscription stream ended")
	}
	if err := c.retryAfter(cause); err != nil {
		c.giveUp(err)
	}
}

// retryAfter schedules the next attempt for a failure. Returns the
// exhaustion error when the budget is spent.
func (c *Consumer) retryAfter(cause error) error {
	err := c.recon.Schedule(cause, c.reopen)
	if err != nil {
		return err
	}
	c.log.Debug("subscription retry scheduled",
		"endpoint", c.endpoint, "attempt", c.recon.Attempt(), "cause", cause)
	return nil
}

// reopen runs on the retry timer. An open failure feeds straight back into
// the schedule.
func (c *Consumer) reopen() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	if err := c.conn.Open(ctx); err != nil {
		if errors.Is(err, stream.ErrActive) || errors.Is(err, context.Canceled) {
			return
		}
		if rerr := c.retryAfter(err); rerr != nil {
			c.giveUp(rerr)
		}
	}
}

func (c *Consumer) giveUp(err error) {
	c.mu.Lock()
	c.lastErr = err
	fns := c.downFns
	c.mu.Unlock()

	c.log.Warn("subscription abandoned", "endpoint", c.endpoint, "error", err)
	for _, fn := range fns {
		fn(err)
	}
}
