// Package demo provides a self-contained IroBot backend stand-in: scripted
// chat generation streams, push event channels with heartbeats, and minimal
// REST stubs. It exists so the CLI and its streaming layer can be exercised
// end to end without a real deployment.
package demo

import (
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/irobothq/irobot/demo/hub"
	"github.com/irobothq/irobot/pkg/history/inmemory"
	"github.com/irobothq/irobot/pkg/logger"
)

// Config is the demo server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8098").
	ListenAddr string

	// HeartbeatInterval is the spacing of heartbeat comments on push
	// streams (defaults to 10s).
	HeartbeatInterval time.Duration

	// DeltaInterval is the pause between chat answer fragments (defaults
	// to 40ms).
	DeltaInterval time.Duration

	// StatusInterval is the pause between document status transitions
	// (defaults to 300ms).
	StatusInterval time.Duration

	// Logger is the server's logger.
	Logger *slog.Logger
}

// Server is the demo backend.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App

	// notifications carries notification and feedback events; dashboard
	// carries aggregate updates.
	notifications *hub.Hub
	dashboard     *hub.Hub

	// cache records scripted chat turns so the conversation endpoints have
	// something real to serve.
	cache *inmemory.Driver

	thumbsUp   atomic.Int64
	thumbsDown atomic.Int64
}

// New creates a demo Server.
func New(config Config) (*Server, error) {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 10 * time.Second
	}
	if config.DeltaInterval <= 0 {
		config.DeltaInterval = 40 * time.Millisecond
	}
	if config.StatusInterval <= 0 {
		config.StatusInterval = 300 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	notifications, err := hub.New(hub.Config{Logger: config.Logger})
	if err != nil {
		return nil, err
	}
	dashboard, err := hub.New(hub.Config{Logger: config.Logger})
	if err != nil {
		notifications.Close()
		return nil, err
	}

	s := &Server{
		config:        config,
		logger:        config.Logger,
		app:           app,
		notifications: notifications,
		dashboard:     dashboard,
		cache:         inmemory.NewDriver(),
	}

	app.Post("/api/auth/login", s.handleLogin)
	app.Post("/api/auth/refresh", s.handleRefresh)
	app.Post("/api/auth/logout", s.handleLogout)
	app.Get("/api/auth/me", s.handleMe)

	app.Get("/api/conversations", s.requireToken, s.handleConversations)
	app.Get("/api/conversations/:id/messages", s.requireToken, s.handleMessages)
	app.Post("/api/feedback", s.requireToken, s.handleFeedback)
	app.Get("/api/notifications", s.requireToken, s.handleNotificationList)

	app.Post("/api/chat/stream", s.requireToken, s.handleChatStream)
	app.Get("/api/events/notifications", s.requireToken, s.handleNotificationStream)
	app.Get("/api/events/dashboard", s.requireToken, s.handleDashboardStream)
	app.Get("/api/events/documents/:id", s.requireToken, s.handleDocumentStream)

	return s, nil
}

// Run starts the demo server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting demo server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the demo server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting demo server", "listen", listener.Addr().String())
	return s.app.Listener(listener)
}

// App exposes the fiber app so extra surfaces (the MCP mount) can attach
// before Run.
func (s *Server) App() *fiber.App {
	return s.app
}

// Notify publishes a notification event to every subscribed client.
func (s *Server) Notify(name string, data []byte) int {
	return s.notifications.Publish(hub.Event{Name: name, Data: data})
}

// Close shuts the server down and drains the hubs.
func (s *Server) Close() error {
	err := s.app.Shutdown()
	s.notifications.Close()
	s.dashboard.Close()
	s.cache.Close()
	return err
}

// requireToken accepts any non-empty bearer header or token query
// parameter. The demo backend authenticates presence, not identity.
func (s *Server) requireToken(c *fiber.Ctx) error {
	auth := c.Get(fiber.HeaderAuthorization)
	if auth == "" && c.Query("token") == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
	}
	return c.Next()
}
