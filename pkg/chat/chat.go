// Package chat implements the chat generation consumer: one POST-based
// event-stream connection per send, an accumulator concatenating content
// deltas, and a terminal sources/metadata event that resolves the send.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/irobothq/irobot/pkg/api"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/logger"
	"github.com/irobothq/irobot/pkg/sse"
	"github.com/irobothq/irobot/pkg/stream"
)

// DefaultMaxMessageLength bounds outgoing messages when no explicit limit
// is configured.
const DefaultMaxMessageLength = 4000

// streamPath is the chat generation endpoint, relative to the API base URL.
const streamPath = "/api/chat/stream"

// sendRequest is the POST body opening a generation stream.
type sendRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// streamPayload is the decoded shape of one data event on the generation
// stream. Type selects the variant: "delta" carries content, "sources"
// is the terminal event carrying source references and message metadata.
type streamPayload struct {
	Type           string       `json:"type"`
	Content        string       `json:"content,omitempty"`
	Sources        []api.Source `json:"sources,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	MessageID      string       `json:"message_id,omitempty"`
}

// Result is a completed generation.
type Result struct {
	Content        string
	Sources        []api.Source
	ConversationID string
	MessageID      string
	Duration       time.Duration
}

// Snapshot is the observable consumer state. After a mid-stream failure it
// still carries whatever content arrived, so a partial answer can be shown
// alongside the error.
type Snapshot struct {
	Content   string
	Sources   []api.Source
	Streaming bool
	Err       error
}

// Consumer owns at most one active generation stream at a time. A send
// while one is streaming is rejected, not superseded; the caller must
// Cancel first.
type Consumer struct {
	baseURL string
	cfg     consumerConfig

	mu       sync.Mutex
	gen      uint64
	conn     *stream.Conn
	canceled chan struct{}
	content  strings.Builder
	sources []api.Source
	convID  string
	msgID   string
	busy    bool
	lastErr error
}

type consumerConfig struct {
	client    *http.Client
	tokens    credentials.Source
	heartbeat time.Duration
	maxLen    int
	logger    *slog.Logger
}

// Option configures a Consumer created with New.
type Option func(*consumerConfig)

// WithHTTPClient overrides the HTTP client used for the stream connection.
func WithHTTPClient(client *http.Client) Option {
	return func(c *consumerConfig) { c.client = client }
}

// WithTokenSource supplies credentials, consulted once per send.
func WithTokenSource(src credentials.Source) Option {
	return func(c *consumerConfig) { c.tokens = src }
}

// WithHeartbeatTimeout sets the idle window for the generation stream.
// Defaults to stream.DefaultHeartbeatTimeout.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(c *consumerConfig) { c.heartbeat = d }
}

// WithMaxMessageLength overrides the outgoing message length bound.
func WithMaxMessageLength(n int) Option {
	return func(c *consumerConfig) { c.maxLen = n }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *consumerConfig) { c.logger = l }
}

// New creates a chat consumer for the API at baseURL.
func New(baseURL string, opts ...Option) *Consumer {
	cfg := consumerConfig{
		heartbeat: stream.DefaultHeartbeatTimeout,
		maxLen:    DefaultMaxMessageLength,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		baseURL: baseURL,
		cfg:     cfg,
	}
}

// Send opens a generation stream for message and blocks until the terminal
// event, a failure, cancellation of ctx, or Cancel. Preconditions are
// checked first: a busy consumer, an empty message or one over the length
// bound return a *ValidationError with no connection opened.
//
// On success the accumulated content, sources and metadata are returned.
// On mid-stream failure the error is returned and the partial content stays
// observable through Snapshot.
func (c *Consumer) Send(ctx context.Context, conversationID, message string) (*Result, error) {
	if verr := c.validate(message); verr != nil {
		c.mu.Lock()
		c.lastErr = verr
		c.mu.Unlock()
		return nil, verr
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		verr := &ValidationError{Reason: "a generation is already streaming"}
		return nil, verr
	}
	c.busy = true
	c.gen++
	gen := c.gen
	canceled := make(chan struct{})
	c.canceled = canceled
	c.content.Reset()
	c.sources = nil
	c.convID = conversationID
	c.msgID = ""
	c.lastErr = nil
	c.mu.Unlock()

	body, err := json.Marshal(sendRequest{Message: message, ConversationID: conversationID})
	if err != nil {
		c.settle(gen, err)
		return nil, err
	}

	disconnected := make(chan stream.Disconnect, 1)

	opts := []stream.Option{
		stream.WithMethod(http.MethodPost),
		stream.WithBody("application/json", body),
		stream.WithHeartbeatTimeout(c.cfg.heartbeat),
		stream.WithLogger(c.cfg.logger),
		stream.WithEventHandler(func(ev sse.Event) { c.handleEvent(gen, ev) }),
		stream.WithDisconnectHandler(func(d stream.Disconnect) { disconnected <- d }),
	}
	if c.cfg.client != nil {
		opts = append(opts, stream.WithHTTPClient(c.cfg.client))
	}
	if c.cfg.tokens != nil {
		opts = append(opts, stream.WithTokenSource(c.cfg.tokens))
	}

	conn := stream.New(c.baseURL+streamPath, opts...)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	start := time.Now()
	if err := conn.Open(ctx); err != nil {
		c.settle(gen, err)
		return nil, err
	}

	select {
	case d := <-disconnected:
		return c.resolve(gen, d, start)
	case <-canceled:
		// Cancel already closed the connection and settled the state;
		// a canceled send never resolves with content.
		return nil, context.Canceled
	case <-ctx.Done():
		conn.Close()
		c.settle(gen, context.Canceled)
		return nil, context.Canceled
	}
}

// Cancel closes the active generation stream, keeping any accumulated
// content. Late callbacks from the canceled connection are suppressed by
// the generation guard. Cancel on an idle consumer is a no-op.
func (c *Consumer) Cancel() {
	c.mu.Lock()
	conn := c.conn
	canceled := c.canceled
	c.gen++
	c.busy = false
	c.conn = nil
	c.canceled = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if canceled != nil {
		close(canceled)
	}
}

// Snapshot returns the current observable state, including partial content
// after a failure or cancellation.
func (c *Consumer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Content:   c.content.String(),
		Sources:   c.sources,
		Streaming: c.busy,
		Err:       c.lastErr,
	}
}

func (c *Consumer) validate(message string) *ValidationError {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return &ValidationError{Reason: "empty message"}
	}
	if len(message) > c.cfg.maxLen {
		return &ValidationError{Reason: "message exceeds length bound"}
	}
	return nil
}

// handleEvent processes one parsed event from the read loop, guarded by the
// send generation so a stale connection cannot touch newer state.
func (c *Consumer) handleEvent(gen uint64, ev sse.Event) {
	var payload streamPayload
	if err := ev.Decode(&payload); err != nil {
		// Malformed payloads degrade to raw text deltas rather than
		// taking the stream down.
		payload = streamPayload{Type: "delta", Content: ev.Data}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}

	switch payload.Type {
	case "sources", "done":
		c.sources = payload.Sources
		if payload.ConversationID != "" {
			c.convID = payload.ConversationID
		}
		c.msgID = payload.MessageID
	default:
		c.content.WriteString(payload.Content)
	}
}

// resolve turns the terminal disconnect of a send into its return value.
func (c *Consumer) resolve(gen uint64, d stream.Disconnect, start time.Time) (*Result, error) {
	c.mu.Lock()
	if c.gen != gen {
		// Cancel raced the disconnect; the cancel path already settled.
		c.mu.Unlock()
		return nil, context.Canceled
	}
	c.busy = false
	c.conn = nil
	c.canceled = nil

	if d.Cause != nil {
		c.lastErr = d.Cause
		c.mu.Unlock()
		return nil, d.Cause
	}

	res := &Result{
		Content:        c.content.String(),
		Sources:        c.sources,
		ConversationID: c.convID,
		MessageID:      c.msgID,
		Duration:       time.Since(start),
	}
	c.mu.Unlock()
	return res, nil
}

// settle marks a send finished with err without producing a result.
func (c *Consumer) settle(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.busy = false
	c.conn = nil
	c.canceled = nil
	c.lastErr = err
}
