package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// StartSessionRequest is the body of POST /v1/sessions.
type StartSessionRequest struct {
	SessionID  string `json:"session_id"`
	PlayerName string `json:"player_name"`
}

// HesitationRequest is the body of POST /v1/sessions/:session_id/hesitations.
type HesitationRequest struct {
	Duration float64 `json:"duration"`
}

// EndSessionRequest is the body of POST /v1/sessions/:session_id/end.
type EndSessionRequest struct {
	Reason string `json:"reason"`
}

// StartSession starts a session.
// POST /v1/sessions
func (h *Handler) StartSession(c echo.Context) error {
	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	started, err := h.service.StartSession(c.Request().Context(), req.SessionID, req.PlayerName)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, started)
}

// ListSessions lists persisted sessions.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	sessions, err := h.service.ListSessions(c.Request().Context(), limit)
	if err != nil {
		return errorResponse(c, err)
	}
	if sessions == nil {
		sessions = []domain.SessionRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// GetSession returns the status of a session.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	status, err := h.service.Status(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// ProcessAction processes a player action.
// POST /v1/sessions/:session_id/actions
func (h *Handler) ProcessAction(c echo.Context) error {
	var action domain.Action
	if err := c.Bind(&action); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid action"})
	}

	outcome, err := h.service.ProcessAction(c.Request().Context(), c.Param("session_id"), action)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// ProcessHesitation records a hesitation.
// POST /v1/sessions/:session_id/hesitations
func (h *Handler) ProcessHesitation(c echo.Context) error {
	var req HesitationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	outcome, err := h.service.ProcessHesitation(c.Request().Context(), c.Param("session_id"), req.Duration)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// EndSession terminates a session.
// POST /v1/sessions/:session_id/end
func (h *Handler) EndSession(c echo.Context) error {
	var req EndSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Reason == "" {
		req.Reason = "requested"
	}

	status, err := h.service.EndSession(c.Request().Context(), c.Param("session_id"), req.Reason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// GetSessionEvents retrieves the timeline of a session.
// GET /v1/sessions/:session_id/events
func (h *Handler) GetSessionEvents(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var types []string
	if t := c.QueryParam("types"); t != "" {
		types = strings.Split(t, ",")
	}

	events, err := h.service.SessionEvents(c.Request().Context(), c.Param("session_id"), afterTs, types, limit)
	if err != nil {
		return errorResponse(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
