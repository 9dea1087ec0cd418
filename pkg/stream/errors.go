package stream

import (
	"errors"
	"fmt"
	"time"
)

// ErrActive is returned by Open when the connection is already connecting
// or open. Callers must Close before reopening.
var ErrActive = errors.New("stream: connection already active")

// TransportError reports a failure to open or hold the connection: a non-2xx
// response status or a network-level error.
type TransportError struct {
	// Status is the HTTP status code, or zero when the failure happened
	// below the HTTP layer.
	Status int

	// Err is the underlying network error, if any.
	Err error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("stream: server rejected connection with status %d", e.Status)
	}
	return fmt.Sprintf("stream: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a heartbeat timeout: the server sent nothing, not
// even a comment line, for longer than the configured window. It is retried
// like a TransportError but reported distinctly so "server silent" can be
// told apart from "server rejected".
type TimeoutError struct {
	// Idle is the configured heartbeat window that elapsed.
	Idle time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stream: no data received for %s", e.Idle)
}

// ExhaustedError reports that the reconnection policy spent its whole
// attempt budget. It is terminal: no further retries are scheduled until
// the caller explicitly resets.
type ExhaustedError struct {
	// Attempts is the number of reconnection attempts made.
	Attempts int

	// LastErr is the failure that ended the final attempt.
	LastErr error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("stream: gave up after %d reconnection attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}
