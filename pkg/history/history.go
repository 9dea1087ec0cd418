// Package history is the local conversation cache: every completed chat turn
// is recorded through a Driver so past conversations can be listed, shown and
// searched offline. Backends live in the sqlite, postgres and inmemory
// subpackages.
package history

import (
	"context"
	"time"
)

// Turn is one completed exchange: the user's question and the finished
// assistant answer with its sources.
type Turn struct {
	ID             string
	ConversationID string
	Question       string
	Answer         string
	Sources        []string
	CreatedAt      time.Time
}

// Conversation summarizes one cached conversation. Title is the first
// question asked in it.
type Conversation struct {
	ID        string
	Title     string
	Turns     int
	UpdatedAt time.Time
}

// Driver persists and retrieves cached turns. Implementations are safe for
// concurrent use.
type Driver interface {
	// SaveTurn records a completed turn. A missing ID or CreatedAt is
	// filled in by the driver.
	SaveTurn(ctx context.Context, turn *Turn) error

	// Conversations lists cached conversations, most recently updated
	// first.
	Conversations(ctx context.Context) ([]Conversation, error)

	// Turns returns a conversation's turns in chronological order.
	// Returns ErrNotFound for a conversation with no cached turns.
	Turns(ctx context.Context, conversationID string) ([]*Turn, error)

	// Search returns turns whose question or answer contains the query,
	// case-insensitively, newest first.
	Search(ctx context.Context, query string) ([]*Turn, error)

	// Close releases the backend's resources.
	Close() error
}
