// Package web exposes the interviewd HTTP surface: the session control
// plane and the browser WebSocket endpoint.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"

	"github.com/voxhire/interviewd/pkg/interview"
	"github.com/voxhire/interviewd/pkg/transport"
)

// Server is the interviewd HTTP server.
type Server struct {
	app      *fiber.App
	registry *interview.Registry
	logger   *slog.Logger

	// baseCtx is the lifetime of spawned sessions; they must outlive the
	// HTTP request that started them.
	baseCtx context.Context
}

// NewServer builds the fiber app and wires all routes. ctx bounds the
// lifetime of every session the server starts.
func NewServer(ctx context.Context, registry *interview.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: registry,
		logger:   logger.With("component", "web"),
		baseCtx:  ctx,
	}

	app := fiber.New(fiber.Config{
		AppName:               "interviewd",
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/cancel", s.handleCancel)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:sessionID", websocket.New(s.handleWS))

	s.app = app
	return s
}

// Listen starts serving on addr and blocks.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server and cancels active sessions.
func (s *Server) Shutdown() error {
	s.registry.CancelAll()
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// handleWS runs the transport event loop for one browser connection.
// websocket.New only invokes this after a successful upgrade.
func (s *Server) handleWS(c *websocket.Conn) {
	sessionID := c.Params("sessionID")
	if sessionID == "" {
		_ = c.Close()
		return
	}
	conn := transport.NewConn(sessionID, c, s.logger)
	transport.Serve(s.registry, conn)
}
