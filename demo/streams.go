package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/irobothq/irobot/pkg/history"
)

// sseWriter frames events onto one side of the stream pipe.
type sseWriter struct {
	w io.Writer
}

func (w *sseWriter) comment(text string) error {
	_, err := fmt.Fprintf(w.w, ": %s\n", text)
	return err
}

// event writes one event. An empty name omits the event line, producing a
// default message event.
func (w *sseWriter) event(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if name != "" {
		if _, err := fmt.Fprintf(w.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w.w, "data: %s\n\n", data)
	return err
}

func (w *sseWriter) done() error {
	_, err := fmt.Fprint(w.w, "data: [DONE]\n\n")
	return err
}

// streamTo switches the response to an event stream and runs fn on its own
// goroutine against the write side of the pipe. Writes block until the
// client consumes them and fail once the client is gone, which is how fn
// learns to stop.
//
// io.Pipe + SetBodyStream rather than SetBodyStreamWriter: the stream writer
// buffers chunks internally, while the pipe gives direct backpressure and
// true per-chunk delivery to the socket.
func (s *Server) streamTo(c *fiber.Ctx, fn func(w *sseWriter) error) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		if err := fn(&sseWriter{w: pw}); err != nil {
			s.logger.Debug("stream ended", "error", err)
		}
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// cannedAnswer is one scripted chat response.
type cannedAnswer struct {
	keyword string
	answer  string
	sources []string
}

var answerScript = []cannedAnswer{
	{
		keyword: "refund",
		answer:  "Refunds are available within 30 days of purchase. Contact support with your order number and the amount is returned to the original payment method within 5 business days.",
		sources: []string{"Refund Policy", "Support Handbook"},
	},
	{
		keyword: "shipping",
		answer:  "Standard shipping takes 3 to 5 business days. Express options are shown at checkout when available for your region.",
		sources: []string{"Shipping FAQ"},
	},
	{
		keyword: "hours",
		answer:  "Support is staffed Monday through Friday, 9am to 6pm Central European Time.",
		sources: []string{"Contact Page"},
	},
}

const fallbackAnswer = "I could not find anything specific about that in the knowledge base, but a support agent can help you directly."

func scriptFor(message string) cannedAnswer {
	lowered := strings.ToLower(message)
	for _, canned := range answerScript {
		if strings.Contains(lowered, canned.keyword) {
			return canned
		}
	}
	return cannedAnswer{answer: fallbackAnswer}
}

// handleChatStream plays back a scripted generation: word-by-word deltas, a
// terminal sources event, then the end sentinel. The finished turn lands in
// the conversation cache.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	var body struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message required"})
	}

	conversationID := body.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	messageID := uuid.NewString()
	canned := scriptFor(body.Message)

	turn := &history.Turn{
		ID:             messageID,
		ConversationID: conversationID,
		Question:       body.Message,
		Answer:         canned.answer,
		Sources:        canned.sources,
	}
	if err := s.cache.SaveTurn(c.Context(), turn); err != nil {
		s.logger.Warn("failed to cache demo turn", "error", err)
	}

	delta := s.config.DeltaInterval
	return s.streamTo(c, func(w *sseWriter) error {
		words := strings.SplitAfter(canned.answer, " ")
		for _, word := range words {
			if err := w.event("", fiber.Map{"type": "delta", "content": word}); err != nil {
				return err
			}
			time.Sleep(delta)
		}

		sources := make([]fiber.Map, 0, len(canned.sources))
		for i, title := range canned.sources {
			sources = append(sources, fiber.Map{
				"title": title,
				"page":  i + 1,
				"score": 0.9 - 0.1*float64(i),
			})
		}
		if err := w.event("", fiber.Map{
			"type":            "sources",
			"sources":         sources,
			"conversation_id": conversationID,
			"message_id":      messageID,
		}); err != nil {
			return err
		}
		return w.done()
	})
}

// handleNotificationStream announces the subscription, then relays hub
// events with heartbeat comments in between.
func (s *Server) handleNotificationStream(c *fiber.Ctx) error {
	events, cancel := s.notifications.Subscribe()
	heartbeat := s.config.HeartbeatInterval

	return s.streamTo(c, func(w *sseWriter) error {
		defer cancel()

		if err := w.event("connected", fiber.Map{"server_time": time.Now().UTC()}); err != nil {
			return err
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := w.event(ev.Name, json.RawMessage(ev.Data)); err != nil {
					return err
				}
			case <-ticker.C:
				if err := w.comment("heartbeat"); err != nil {
					return err
				}
			}
		}
	})
}

// handleDashboardStream emits aggregate stats on every heartbeat tick.
func (s *Server) handleDashboardStream(c *fiber.Ctx) error {
	events, cancel := s.dashboard.Subscribe()
	heartbeat := s.config.HeartbeatInterval

	return s.streamTo(c, func(w *sseWriter) error {
		defer cancel()

		if err := w.event("connected", fiber.Map{"server_time": time.Now().UTC()}); err != nil {
			return err
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := w.event(ev.Name, json.RawMessage(ev.Data)); err != nil {
					return err
				}
			case <-ticker.C:
				if err := w.event("dashboard_update", s.dashboardSnapshot()); err != nil {
					return err
				}
			}
		}
	})
}

func (s *Server) dashboardSnapshot() fiber.Map {
	conversations, _ := s.cache.Conversations(context.Background())
	up := s.thumbsUp.Load()
	down := s.thumbsDown.Load()
	return fiber.Map{
		"active_users":  1,
		"conversations": len(conversations),
		"feedback": fiber.Map{
			"thumbs_up":   up,
			"thumbs_down": down,
			"total":       up + down,
		},
	}
}

// handleDocumentStream walks one document through the processing pipeline
// and ends at a terminal status. The stream stays open briefly after the
// terminal event so slow clients still read it; watchers close themselves.
func (s *Server) handleDocumentStream(c *fiber.Ctx) error {
	documentID := c.Params("id")
	step := s.config.StatusInterval

	return s.streamTo(c, func(w *sseWriter) error {
		if err := w.event("connected", fiber.Map{"server_time": time.Now().UTC()}); err != nil {
			return err
		}

		for _, status := range []string{"PENDING", "PROCESSING", "COMPLETED"} {
			time.Sleep(step)
			if err := w.event("document_status", fiber.Map{
				"document_id": documentID,
				"status":      status,
			}); err != nil {
				return err
			}
		}
		return w.done()
	})
}
