package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/dailymission/internal/domain"
)

// Classify rates text with the crisis classifier.
// POST /v1/safety/classify
func (h *Handler) Classify(c echo.Context) error {
	var req domain.ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", "invalid request body")
	}
	return c.JSON(http.StatusOK, h.service.Classify(req.Text))
}
