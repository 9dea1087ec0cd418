package api

import (
	"context"
	"net/http"
	"time"
)

// Conversation is one chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source is one document reference attached to an assistant answer.
type Source struct {
	Title    string  `json:"title"`
	Page     int     `json:"page,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
	Document string  `json:"document_id,omitempty"`
}

// ConversationMessage is one stored message within a conversation.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListConversations returns the caller's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetConversation returns one conversation by ID.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+pathEscape(id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ConversationMessages returns the messages of one conversation in order.
func (c *Client) ConversationMessages(ctx context.Context, id string) ([]ConversationMessage, error) {
	var out struct {
		Messages []ConversationMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+pathEscape(id)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+pathEscape(id), nil, nil)
}
