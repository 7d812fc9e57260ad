package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/voxhire/interviewd/pkg/interview"
)

// StartRequest is the body of POST /api/session/start.
type StartRequest struct {
	SessionID      string `json:"sessionId"`
	Credential     string `json:"credential"`
	Resume         string `json:"resume"`
	JobDescription string `json:"jobDescription"`
}

// CancelRequest is the body of POST /api/session/cancel.
type CancelRequest struct {
	SessionID string `json:"sessionId"`
}

// handleStart validates the request against the registry and spawns the
// interview session. The handler returns as soon as the session goroutine
// is started.
func (s *Server) handleStart(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing-fields",
		})
	}

	if req.SessionID == "" || req.Credential == "" || req.Resume == "" || req.JobDescription == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing-fields",
		})
	}

	id, err := s.registry.StartSession(s.baseCtx, interview.Params{
		ID:             req.SessionID,
		Credential:     req.Credential,
		Resume:         req.Resume,
		JobDescription: req.JobDescription,
	})
	switch {
	case errors.Is(err, interview.ErrNoTransport):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "transport-not-established",
		})
	case errors.Is(err, interview.ErrSessionExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "session-already-active",
		})
	case err != nil:
		s.logger.Error("start session failed", "session_id", req.SessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal",
		})
	}

	return c.JSON(fiber.Map{"conversationId": id})
}

// handleCancel clears the session's running flag and removes it from the
// registry; it does not wait for the lifecycle goroutine to finish.
func (s *Server) handleCancel(c *fiber.Ctx) error {
	var req CancelRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing-session-id",
		})
	}

	if err := s.registry.CancelSession(req.SessionID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not-found",
		})
	}

	return c.JSON(fiber.Map{"status": "cancelled"})
}

// handleStatus reports registry occupancy.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"activeSessions":      s.registry.ActiveSessions(),
		"connectedTransports": s.registry.ConnectedTransports(),
	})
}
