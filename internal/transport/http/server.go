// Package http provides the HTTP server of the session engine.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bouteflan/penrose-experiment/internal/service"
	v1 "github.com/bouteflan/penrose-experiment/internal/transport/http/v1"
	"github.com/bouteflan/penrose-experiment/internal/transport/ws"
)

// NewServer creates the HTTP server serving the v1 API and the WebSocket
// endpoint.
func NewServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	if wsServer != nil {
		e.GET("/ws", wsServer.HandleWebSocket)
	}

	return e
}
