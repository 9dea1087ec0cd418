package demo

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/irobothq/irobot/pkg/api"
	"github.com/irobothq/irobot/pkg/history"
)

const (
	demoAccessToken  = "demo-access-token"
	demoRefreshToken = "demo-refresh-token"
)

var demoUser = fiber.Map{
	"id":    "user-demo",
	"email": "demo@irobot.local",
	"name":  "Demo User",
	"role":  "admin",
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil || body.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and password required"})
	}

	s.logger.Info("demo login", "email", body.Email)
	return c.JSON(fiber.Map{
		"access_token":  demoAccessToken,
		"refresh_token": demoRefreshToken,
		"user":          demoUser,
	})
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil || body.RefreshToken == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "refresh token required"})
	}

	return c.JSON(fiber.Map{
		"access_token":  demoAccessToken,
		"refresh_token": demoRefreshToken,
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(demoUser)
}

func (s *Server) handleConversations(c *fiber.Ctx) error {
	conversations, err := s.cache.Conversations(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list conversations"})
	}

	out := make([]fiber.Map, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, fiber.Map{
			"id":            conv.ID,
			"title":         conv.Title,
			"message_count": conv.Turns * 2,
			"updated_at":    conv.UpdatedAt,
		})
	}
	return c.JSON(out)
}

func (s *Server) handleMessages(c *fiber.Ctx) error {
	turns, err := s.cache.Turns(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conversation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load messages"})
	}

	messages := make([]fiber.Map, 0, len(turns)*2)
	for _, turn := range turns {
		messages = append(messages, fiber.Map{
			"id":         turn.ID + "-q",
			"role":       "user",
			"content":    turn.Question,
			"created_at": turn.CreatedAt,
		}, fiber.Map{
			"id":         turn.ID,
			"role":       "assistant",
			"content":    turn.Answer,
			"created_at": turn.CreatedAt,
		})
	}
	return c.JSON(messages)
}

func (s *Server) handleFeedback(c *fiber.Ctx) error {
	var body struct {
		MessageID string `json:"message_id"`
		Rating    string `json:"rating"`
		Comment   string `json:"comment"`
	}
	if err := c.BodyParser(&body); err != nil || body.MessageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message_id and rating required"})
	}

	rating, err := api.ParseRating(body.Rating)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	switch rating {
	case api.RatingThumbsUp:
		s.thumbsUp.Add(1)
	case api.RatingThumbsDown:
		s.thumbsDown.Add(1)
	}

	// Broadcast the rating so notification subscribers see it land live.
	payload, _ := json.Marshal(fiber.Map{
		"message_id": body.MessageID,
		"rating":     rating,
		"comment":    body.Comment,
	})
	s.Notify("feedback", payload)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message_id": body.MessageID,
		"rating":     rating,
	})
}

func (s *Server) handleNotificationList(c *fiber.Ctx) error {
	return c.JSON([]fiber.Map{
		{
			"id":         "notif-1",
			"type":       "system",
			"title":      "Welcome to the IroBot demo",
			"body":       "Everything this server answers is scripted.",
			"read":       false,
			"created_at": time.Now().UTC().Add(-time.Hour),
		},
	})
}
