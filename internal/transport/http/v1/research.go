package v1

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bouteflan/penrose-experiment/internal/service"
)

// GetSessionStats returns per-session statistics.
// GET /v1/sessions/:session_id/stats
func (h *Handler) GetSessionStats(c echo.Context) error {
	stats, err := h.service.SessionStats(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// DeleteSession ends a session if needed and removes its history.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	id := c.Param("session_id")
	if err := h.service.DeleteSession(c.Request().Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"session_id": id,
	})
}

// GetBehavioralPatterns analyses recent actions of one or all sessions.
// GET /v1/experiment/behavioral-patterns?session_id=&limit=
func (h *Handler) GetBehavioralPatterns(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	sessionID := c.QueryParam("session_id")

	patterns, err := h.service.BehavioralPatterns(c.Request().Context(), sessionID, limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"filters": map[string]interface{}{
			"session_id": sessionID,
			"limit":      limit,
		},
		"sample_size": patterns.SampleSize,
	})
}

// ExportData exports persisted sessions for offline analysis.
// GET /v1/experiment/export?format=json|csv&days_back=30&anonymize=true
func (h *Handler) ExportData(c echo.Context) error {
	opts := service.ExportOptions{
		Format:    c.QueryParam("format"),
		Anonymize: true,
	}
	if d := c.QueryParam("days_back"); d != "" {
		if val, err := strconv.Atoi(d); err == nil {
			opts.DaysBack = val
		}
	}
	if a := c.QueryParam("anonymize"); a != "" {
		if val, err := strconv.ParseBool(a); err == nil {
			opts.Anonymize = val
		}
	}

	export, err := h.service.ExportData(c.Request().Context(), opts)
	if err != nil {
		return errorResponse(c, err)
	}
	if export.Format != service.ExportCSV {
		return c.JSON(http.StatusOK, export)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf); err != nil {
		return errorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="sessions.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
