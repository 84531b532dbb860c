// Package v1 provides the v1 HTTP handlers.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Session lifecycle
	e.POST("/v1/sessions", h.StartSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.POST("/v1/sessions/:session_id/actions", h.ProcessAction)
	e.POST("/v1/sessions/:session_id/hesitations", h.ProcessHesitation)
	e.POST("/v1/sessions/:session_id/end", h.EndSession)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)

	// Scoring views
	e.GET("/v1/sessions/:session_id/corruption", h.GetCorruption)
	e.POST("/v1/sessions/:session_id/corruption/reset", h.ResetCorruption)
	e.GET("/v1/sessions/:session_id/bias", h.GetBias)
	e.GET("/v1/sessions/:session_id/actions", h.ListActions)
	e.GET("/v1/sessions/:session_id/narrator", h.ListNarratorInteractions)
	e.GET("/v1/sessions/:session_id/events", h.GetSessionEvents)
	e.GET("/v1/sessions/:session_id/stats", h.GetSessionStats)

	// Research
	e.GET("/v1/experiment/aggregate", h.GetAggregate)
	e.GET("/v1/experiment/behavioral-patterns", h.GetBehavioralPatterns)
	e.GET("/v1/experiment/export", h.ExportData)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorResponse maps service errors to HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotActive):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidAction), errors.Is(err, service.ErrInvalidExport):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.WithField("path", c.Path()).WithError(err).Error("request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
