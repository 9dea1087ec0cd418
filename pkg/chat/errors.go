package chat

import "fmt"

// ValidationError reports a caller-side precondition violation: an empty or
// oversized message, or a send while a generation is already streaming.
// Validation errors are never retried and never open a connection.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: %s", e.Reason)
}
