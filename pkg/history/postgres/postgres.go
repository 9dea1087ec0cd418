// Package postgres provides a PostgreSQL history backend for shared caches.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/irobothq/irobot/pkg/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	question        TEXT NOT NULL,
	answer          TEXT NOT NULL,
	sources         JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns (conversation_id, created_at);
`

// Driver implements history.Driver on PostgreSQL.
type Driver struct {
	db *sql.DB
}

// NewDriver opens the history database described by connStr, either keyword
// form or a postgres:// URI.
func NewDriver(ctx context.Context, connStr string) (*Driver, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) SaveTurn(ctx context.Context, turn *history.Turn) error {
	if turn == nil {
		return errors.New("cannot save nil turn")
	}
	if turn.ConversationID == "" {
		return errors.New("turn has no conversation id")
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	sources, err := json.Marshal(turn.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, question, answer, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.ID, turn.ConversationID, turn.Question, turn.Answer, string(sources), turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

func (d *Driver) Conversations(ctx context.Context) ([]history.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.conversation_id,
		       (SELECT question FROM turns
		        WHERE conversation_id = t.conversation_id
		        ORDER BY created_at ASC LIMIT 1),
		       COUNT(*),
		       MAX(t.created_at)
		FROM turns t
		GROUP BY t.conversation_id
		ORDER BY MAX(t.created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []history.Conversation
	for rows.Next() {
		var c history.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.Turns, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (d *Driver) Turns(ctx context.Context, conversationID string) ([]*history.Turn, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, conversation_id, question, answer, sources, created_at
		FROM turns
		WHERE conversation_id = $1
		ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("conversation %q: %w", conversationID, history.ErrNotFound)
	}
	return turns, nil
}

func (d *Driver) Search(ctx context.Context, query string) ([]*history.Turn, error) {
	pattern := "%" + query + "%"
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, conversation_id, question, answer, sources, created_at
		FROM turns
		WHERE question ILIKE $1 OR answer ILIKE $1
		ORDER BY created_at DESC`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (d *Driver) Close() error {
	return d.db.Close()
}

func scanTurns(rows *sql.Rows) ([]*history.Turn, error) {
	var turns []*history.Turn
	for rows.Next() {
		var t history.Turn
		var sources string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Question, &t.Answer, &sources, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &t.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
