package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/irobothq/irobot/pkg/logger"
	"github.com/irobothq/irobot/pkg/sse"
)

// DefaultHeartbeatTimeout is the idle window after which a silent server is
// treated as gone.
const DefaultHeartbeatTimeout = 30 * time.Second

// Conn manages one logical event-stream connection: a single transport
// attempt at a time, an explicit state machine, and a heartbeat watchdog.
// A Conn may be reopened after it reaches StateClosed or StateFailed, which
// is how the reconnection path reuses it.
//
// Every attempt carries a generation number. Close and reopen bump it, and
// every callback checks it first, so a late delivery from a superseded
// attempt can never overwrite newer state.
type Conn struct {
	endpoint string
	cfg      connConfig

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	watchdog *time.Timer
	cause    error
	sawDone  bool
}

// New creates a Conn for the given endpoint. The connection is Idle until
// Open is called.
func New(endpoint string, opts ...Option) *Conn {
	cfg := connConfig{
		method:     http.MethodGet,
		client:     &http.Client{},
		heartbeat:  DefaultHeartbeatTimeout,
		queryParam: "token",
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Conn{
		endpoint: endpoint,
		cfg:      cfg,
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open issues the request and, on a 2xx response, starts the read loop in
// its own goroutine. It returns ErrActive when the connection is already
// connecting or open. The token source is consulted exactly once, here, so
// a rotated token lands on the next attempt rather than mid-stream.
//
// ctx scopes the whole attempt: canceling it tears the stream down the same
// way Close does, except that the disconnect handler is informed.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return ErrActive
	}
	c.gen++
	gen := c.gen
	c.cause = nil
	c.sawDone = false
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	req, err := c.buildRequest(attemptCtx)
	if err != nil {
		cancel()
		c.abandon(gen, StateFailed)
		return err
	}

	resp, err := c.cfg.client.Do(req)
	if err != nil {
		cancel()
		if attemptCtx.Err() != nil {
			c.abandon(gen, StateClosed)
			return context.Canceled
		}
		terr := &TransportError{Err: err}
		c.abandon(gen, StateFailed)
		c.cfg.logger.Warn("stream open failed", "endpoint", c.endpoint, "error", terr)
		return terr
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		cancel()
		terr := &TransportError{Status: resp.StatusCode}
		c.abandon(gen, StateFailed)
		c.cfg.logger.Warn("stream rejected", "endpoint", c.endpoint, "status", resp.StatusCode)
		return terr
	}

	c.mu.Lock()
	if c.gen != gen {
		// Close raced the connect; the response is ours to discard.
		c.mu.Unlock()
		resp.Body.Close()
		cancel()
		return context.Canceled
	}
	c.state = StateOpen
	if c.cfg.heartbeat > 0 {
		c.watchdog = time.AfterFunc(c.cfg.heartbeat, func() { c.heartbeatExpired(gen) })
	}
	c.mu.Unlock()
	c.notifyState(StateOpen)
	c.cfg.logger.Debug("stream open", "endpoint", c.endpoint)

	go c.readLoop(gen, attemptCtx, cancel, resp.Body)
	return nil
}

// Close tears down the connection. It is idempotent: closing an already
// terminal connection is a no-op with no duplicate handler invocations.
// An attempt ended by Close never reaches the disconnect handler and is
// never retried.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.state != StateConnecting && c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	c.state = StateClosed
	c.mu.Unlock()
	c.notifyState(StateClosed)
	c.cfg.logger.Debug("stream closed by caller", "endpoint", c.endpoint)
}

// buildRequest assembles the per-attempt request, resolving the token from
// the credential source.
func (c *Conn) buildRequest(ctx context.Context) (*http.Request, error) {
	endpoint := c.endpoint

	var token string
	if c.cfg.tokens != nil {
		tok, err := c.cfg.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("stream: resolving token: %w", err)
		}
		token = tok
	}

	if c.cfg.tokens != nil && c.cfg.tokenInQuery {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("stream: parsing endpoint: %w", err)
		}
		q := u.Query()
		q.Set(c.cfg.queryParam, token)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	var body io.Reader
	if len(c.cfg.body) > 0 {
		body = bytes.NewReader(c.cfg.body)
	}

	req, err := http.NewRequestWithContext(ctx, c.cfg.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("stream: building request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.contentType != "" {
		req.Header.Set("Content-Type", c.cfg.contentType)
	}
	for key, values := range c.cfg.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if c.cfg.tokens != nil && !c.cfg.tokenInQuery {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// readLoop drives the attempt: it feeds bytes through the parser, resets
// the watchdog on every line (comments included), dispatches events in
// arrival order, and performs the single terminal transition for the
// attempt. All handler invocations for one attempt come from this
// goroutine, which is what makes delivery ordered.
func (c *Conn) readLoop(gen uint64, ctx context.Context, cancel context.CancelFunc, body io.ReadCloser) {
	defer body.Close()
	defer cancel()

	reader := sse.NewReader(body)
	reader.OnLine = func(sse.Line) { c.feedWatchdog(gen) }

	for {
		ev, err := reader.Next()
		if err != nil {
			c.finish(gen, ctx, err)
			return
		}
		if ev == nil {
			c.finish(gen, ctx, nil)
			return
		}
		if ev.Done() {
			c.mu.Lock()
			if c.gen == gen {
				c.sawDone = true
			}
			c.mu.Unlock()
			c.finish(gen, ctx, nil)
			return
		}
		c.dispatch(gen, *ev)
	}
}

// dispatch hands one event to the handler unless the attempt has been
// superseded in the meantime.
func (c *Conn) dispatch(gen uint64, ev sse.Event) {
	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale || c.cfg.onEvent == nil {
		return
	}
	c.cfg.onEvent(ev)
}

// feedWatchdog pushes the heartbeat deadline out. Called for every line the
// server sends, so comment heartbeats keep the connection alive.
func (c *Conn) feedWatchdog(gen uint64) {
	c.mu.Lock()
	if c.gen == gen && c.watchdog != nil {
		c.watchdog.Reset(c.cfg.heartbeat)
	}
	c.mu.Unlock()
}

// heartbeatExpired records the timeout and cancels the attempt. The read
// loop wakes from the dead transport read and performs the actual Failed
// transition, keeping all terminal reporting on one goroutine.
func (c *Conn) heartbeatExpired(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.cause = &TimeoutError{Idle: c.cfg.heartbeat}
	cancel := c.cancel
	c.mu.Unlock()

	c.cfg.logger.Warn("stream heartbeat expired", "endpoint", c.endpoint, "idle", c.cfg.heartbeat)
	if cancel != nil {
		cancel()
	}
}

// finish performs the terminal transition for an opened attempt and reports
// it through the disconnect handler. Superseded attempts report nothing.
func (c *Conn) finish(gen uint64, ctx context.Context, readErr error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	c.cancel = nil

	var state State
	var d Disconnect
	switch {
	case c.cause != nil:
		// Heartbeat timeout recorded before the cancel woke us.
		state = StateFailed
		d = Disconnect{Cause: c.cause}
	case ctx.Err() != nil:
		// The caller canceled the attempt context.
		state = StateClosed
		d = Disconnect{Cause: context.Canceled, Intentional: true}
	case readErr != nil:
		state = StateFailed
		d = Disconnect{Cause: &TransportError{Err: readErr}}
	default:
		state = StateClosed
		d = Disconnect{Done: c.sawDone}
	}
	c.state = state
	c.mu.Unlock()

	c.notifyState(state)
	if d.Cause != nil {
		c.cfg.logger.Debug("stream disconnected", "endpoint", c.endpoint, "cause", d.Cause)
	} else {
		c.cfg.logger.Debug("stream ended", "endpoint", c.endpoint, "done", d.Done)
	}
	if c.cfg.onDisconnect != nil {
		c.cfg.onDisconnect(d)
	}
}

// abandon moves a pre-open attempt to its terminal state. Open failures are
// reported through Open's return value, not the disconnect handler.
func (c *Conn) abandon(gen uint64, state State) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.state = state
	c.mu.Unlock()
	c.notifyState(state)
}

func (c *Conn) notifyState(s State) {
	if c.cfg.onState != nil {
		c.cfg.onState(s)
	}
}
