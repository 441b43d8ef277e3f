// Package v1 provides the JSON handlers of the chat API.
package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/chat/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	version string
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, version string) *Handler {
	if version == "" {
		version = "1.0.0"
	}
	return &Handler{
		service: service,
		version: version,
	}
}

// RegisterRoutes registers the chat API. authn guards every chat route;
// global limits all of them except send, which the service admits itself.
func (h *Handler) RegisterRoutes(e *echo.Echo, authn, global echo.MiddlewareFunc) {
	e.GET("/api/health", h.Health)

	g := e.Group("/api/chat", authn)
	g.POST("", h.SendMessage)
	g.GET("/history", h.ListHistory, global)
	g.DELETE("/history", h.ClearHistory, global)
	g.GET("/session/:sessionId", h.GetSession, global)
	g.DELETE("/session/:sessionId", h.DeleteSession, global)
	g.GET("/stats", h.Stats, global)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message":   "Chat API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	})
}
