package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// ResetCorruptionRequest is the body of the corruption reset endpoint.
type ResetCorruptionRequest struct {
	Level float64 `json:"level"`
}

// GetCorruption describes the corruption state of an active session.
// GET /v1/sessions/:session_id/corruption
func (h *Handler) GetCorruption(c echo.Context) error {
	d, err := h.service.DescribeCorruption(c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ResetCorruption sets the corruption level of an active session.
// POST /v1/sessions/:session_id/corruption/reset
func (h *Handler) ResetCorruption(c echo.Context) error {
	var req ResetCorruptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	d, err := h.service.ResetCorruption(c.Request().Context(), c.Param("session_id"), req.Level)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// GetBias returns the latest bias snapshot and metric evolution.
// GET /v1/sessions/:session_id/bias
func (h *Handler) GetBias(c echo.Context) error {
	summary, err := h.service.BiasSummary(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// ListActions returns the action history of a session.
// GET /v1/sessions/:session_id/actions
func (h *Handler) ListActions(c echo.Context) error {
	actions, err := h.service.SessionActions(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if actions == nil {
		actions = []domain.ActionRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"actions": actions,
	})
}

// ListNarratorInteractions returns the narrator exchanges of a session.
// GET /v1/sessions/:session_id/narrator
func (h *Handler) ListNarratorInteractions(c echo.Context) error {
	interactions, err := h.service.NarratorInteractions(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if interactions == nil {
		interactions = []domain.NarratorInteraction{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"interactions": interactions,
	})
}

// GetAggregate returns cross-session experiment statistics.
// GET /v1/experiment/aggregate
func (h *Handler) GetAggregate(c echo.Context) error {
	stats, err := h.service.AggregateStats(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
