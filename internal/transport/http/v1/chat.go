package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/chat/internal/auth"
	"github.com/xiaot623/gogo/chat/internal/domain"
)

// SendMessage handles one conversation turn.
// POST /api/chat
func (h *Handler) SendMessage(c echo.Context) error {
	var req domain.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("Invalid request body")
	}

	resp, err := h.service.SendMessage(c.Request().Context(), auth.OwnerID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
