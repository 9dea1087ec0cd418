// Package inmemory provides a map-backed history driver, used by tests and
// by the demo server.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/irobothq/irobot/pkg/history"
)

// Driver implements history.Driver with an in-memory map.
type Driver struct {
	mu sync.RWMutex

	// turns maps conversation ID to that conversation's turns in insertion
	// order.
	turns map[string][]*history.Turn
}

// NewDriver creates an empty in-memory history cache.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string][]*history.Turn),
	}
}

func (d *Driver) SaveTurn(_ context.Context, turn *history.Turn) error {
	if turn == nil {
		return errors.New("cannot save nil turn")
	}
	if turn.ConversationID == "" {
		return errors.New("turn has no conversation id")
	}

	stored := *turn
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.Sources = append([]string(nil), turn.Sources...)
	turn.ID = stored.ID
	turn.CreatedAt = stored.CreatedAt

	d.mu.Lock()
	defer d.mu.Unlock()
	d.turns[stored.ConversationID] = append(d.turns[stored.ConversationID], &stored)
	return nil
}

func (d *Driver) Conversations(_ context.Context) ([]history.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conversations := make([]history.Conversation, 0, len(d.turns))
	for id, turns := range d.turns {
		c := history.Conversation{
			ID:    id,
			Title: turns[0].Question,
			Turns: len(turns),
		}
		for _, t := range turns {
			if t.CreatedAt.After(c.UpdatedAt) {
				c.UpdatedAt = t.CreatedAt
			}
		}
		conversations = append(conversations, c)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (d *Driver) Turns(_ context.Context, conversationID string) ([]*history.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	turns, ok := d.turns[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", conversationID, history.ErrNotFound)
	}

	out := make([]*history.Turn, len(turns))
	copy(out, turns)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (d *Driver) Search(_ context.Context, query string) ([]*history.Turn, error) {
	needle := strings.ToLower(query)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*history.Turn
	for _, turns := range d.turns {
		for _, t := range turns {
			if strings.Contains(strings.ToLower(t.Question), needle) ||
				strings.Contains(strings.ToLower(t.Answer), needle) {
				out = append(out, t)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (d *Driver) Close() error {
	return nil
}
