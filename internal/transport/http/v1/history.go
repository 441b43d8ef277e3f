package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/chat/internal/auth"
	"github.com/xiaot623/gogo/chat/internal/domain"
	"github.com/xiaot623/gogo/chat/internal/history"
)

// ListHistory returns a page of sessions.
// GET /api/chat/history?page=&limit=&sessionId=
func (h *Handler) ListHistory(c echo.Context) error {
	page, err := intParam(c, "page", history.DefaultPage)
	if err != nil {
		return err
	}
	limit, err := intParam(c, "limit", history.DefaultPageSize)
	if err != nil {
		return err
	}

	result, err := h.service.ListHistory(c.Request().Context(), auth.OwnerID(c), domain.HistoryQuery{
		Page:      page,
		PageSize:  limit,
		SessionID: c.QueryParam("sessionId"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// GetSession returns one session with its turns.
// GET /api/chat/session/:sessionId
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), auth.OwnerID(c), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session": session,
	})
}

// DeleteSession soft-deletes one session.
// DELETE /api/chat/session/:sessionId
func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID := c.Param("sessionId")
	if err := h.service.DeleteSession(c.Request().Context(), auth.OwnerID(c), sessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "Session deleted successfully",
		"sessionId": sessionID,
	})
}

// ClearHistory soft-deletes every session of the caller.
// DELETE /api/chat/history
func (h *Handler) ClearHistory(c echo.Context) error {
	n, err := h.service.ClearHistory(c.Request().Context(), auth.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Chat history cleared successfully",
		"cleared": n,
	})
}

// Stats returns usage statistics.
// GET /api/chat/stats
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context(), auth.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"stats": stats,
	})
}

func intParam(c echo.Context, name string, defaultVal int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("%s must be an integer", name)
	}
	return v, nil
}
