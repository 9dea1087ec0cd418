// Package stream manages long-lived event-stream connections to the IroBot
// backend: one transport attempt at a time, an explicit connection state
// machine, a heartbeat watchdog, and a bounded reconnection policy. Typed
// consumers (chat generation, notifications) are built on top in pkg/chat
// and pkg/notify.
package stream

// State is the lifecycle state of a Conn.
type State int

const (
	// StateIdle is a connection that has never been opened.
	StateIdle State = iota

	// StateConnecting covers the window between an Open call and the
	// server accepting the request headers.
	StateConnecting

	// StateOpen is an established connection with a running read loop.
	StateOpen

	// StateClosed is reached on graceful server end-of-stream or an
	// explicit caller Close.
	StateClosed

	// StateFailed is reached on a transport error, a non-2xx response, or
	// a heartbeat timeout. A failed connection may be reopened.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Disconnect describes how an opened connection ended. It is handed to the
// disconnect handler exactly once per attempt that reached StateOpen, except
// for attempts torn down by Close, which report nothing.
type Disconnect struct {
	// Cause is the terminal error: a *TransportError, a *TimeoutError, or
	// context.Canceled. Nil when the server ended the stream gracefully.
	Cause error

	// Done reports whether the stream-termination sentinel was observed
	// before the stream ended.
	Done bool

	// Intentional reports a caller-driven termination (context
	// cancellation). Intentional disconnects are never retried.
	Intentional bool
}
