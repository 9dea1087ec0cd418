package history

import "errors"

// ErrNotFound is returned when a conversation has no cached turns.
var ErrNotFound = errors.New("history: conversation not found")
