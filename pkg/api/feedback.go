package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Rating is the canonical thumbs rating. Lower-case snake values are the
// wire format; ParseRating normalizes any historical casing at the boundary.
type Rating string

const (
	RatingThumbsUp   Rating = "thumbs_up"
	RatingThumbsDown Rating = "thumbs_down"
)

// ParseRating normalizes a rating value to its canonical lower-case form.
// The backend has historically emitted both "thumbs_up" and "THUMBS_UP"
// spellings; every input boundary (CLI flags, REST payloads, notification
// events) goes through here so the rest of the codebase only ever sees the
// canonical constants.
func ParseRating(s string) (Rating, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "thumbs_up", "up", "+1":
		return RatingThumbsUp, nil
	case "thumbs_down", "down", "-1":
		return RatingThumbsDown, nil
	default:
		return "", fmt.Errorf("invalid rating %q (expected thumbs_up or thumbs_down)", s)
	}
}

// Feedback is one piece of user feedback on an assistant answer.
type Feedback struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	Rating         Rating    `json:"rating"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FeedbackSummary is the aggregate feedback breakdown used by the dashboard.
type FeedbackSummary struct {
	Total      int `json:"total"`
	ThumbsUp   int `json:"thumbs_up"`
	ThumbsDown int `json:"thumbs_down"`
}

// SubmitFeedbackRequest is the payload for SubmitFeedback.
type SubmitFeedbackRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Rating         Rating `json:"rating"`
	Comment        string `json:"comment,omitempty"`
}

// SubmitFeedback records feedback. The rating is normalized before sending.
func (c *Client) SubmitFeedback(ctx context.Context, req SubmitFeedbackRequest) (*Feedback, error) {
	rating, err := ParseRating(string(req.Rating))
	if err != nil {
		return nil, err
	}
	req.Rating = rating

	var fb Feedback
	if err := c.do(ctx, http.MethodPost, "/api/feedback", req, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

// ListFeedback returns recorded feedback, newest first.
func (c *Client) ListFeedback(ctx context.Context) ([]Feedback, error) {
	var out struct {
		Feedback []Feedback `json:"feedback"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/feedback", nil, &out); err != nil {
		return nil, err
	}

	// Normalize historical casings coming back from the server.
	for i := range out.Feedback {
		if rating, err := ParseRating(string(out.Feedback[i].Rating)); err == nil {
			out.Feedback[i].Rating = rating
		}
	}
	return out.Feedback, nil
}

// GetFeedbackSummary returns the aggregate feedback counts.
func (c *Client) GetFeedbackSummary(ctx context.Context) (*FeedbackSummary, error) {
	var sum FeedbackSummary
	if err := c.do(ctx, http.MethodGet, "/api/feedback/summary", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}
