package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facelink/pkg/capture"
	"github.com/teslashibe/go-facelink/pkg/face"
	"github.com/teslashibe/go-facelink/pkg/hub"
	"github.com/teslashibe/go-facelink/pkg/tracking"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State     string               `json:"state"`
	Reason    string               `json:"reason,omitempty"`
	SessionID string               `json:"session_id,omitempty"`
	Uptime    string               `json:"uptime"`
	Tracker   tracking.Stats       `json:"tracker"`
	Capture   *capture.HubStats    `json:"capture,omitempty"`
	Dashboard map[string]hub.Stats `json:"dashboard"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the tracker state and counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.tracker.State()
	resp := StatusResponse{
		State:     st.Phase.String(),
		Reason:    st.Reason,
		SessionID: s.tracker.SessionID(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Tracker:   s.tracker.Stats(),
		Dashboard: map[string]hub.Stats{
			"frames": s.frameHub.Stats(),
			"state":  s.stateHub.Stats(),
		},
	}
	if s.capture != nil {
		hs := s.capture.Stats()
		resp.Capture = &hs
	}
	return c.JSON(resp)
}

// handleStart opens a capture session
func (s *Server) handleStart(c *fiber.Ctx) error {
	err := s.tracker.Start(c.UserContext())
	if err != nil {
		var se *tracking.StartError
		switch {
		case errors.As(err, &se):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": se.Reason,
			})
		case errors.Is(err, tracking.ErrIllegalState), errors.Is(err, tracking.ErrStartInterrupted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
				"state": s.tracker.State().Phase.String(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	s.log.Info("tracking started via api", "session", s.tracker.SessionID())
	st := s.tracker.State()
	return c.JSON(fiber.Map{
		"state":      st.Phase.String(),
		"session_id": s.tracker.SessionID(),
	})
}

// handleStop closes the current session
func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.tracker.Stop(); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, tracking.ErrIllegalState) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"state": s.tracker.State().Phase.String(),
	})
}

// handleUnits lists the action unit names in canonical order
func (s *Server) handleUnits(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"units": face.Names(),
		"count": face.Count,
	})
}

// handleClients lists connected capture clients
func (s *Server) handleClients(c *fiber.Ctx) error {
	if s.capture == nil {
		return c.JSON([]capture.ClientInfo{})
	}
	return c.JSON(s.capture.Clients())
}

// handleFramesWS streams processed frames
func (s *Server) handleFramesWS(c *websocket.Conn) {
	client := hub.NewClient(s.frameHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// handleStateWS streams state changes. The hub greets each client with
// the current state.
func (s *Server) handleStateWS(c *websocket.Conn) {
	client := hub.NewClient(s.stateHub, c)
	if client == nil {
		return
	}
	client.Run()
}
