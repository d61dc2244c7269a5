package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/dailymission/internal/domain"
)

// GetTodayAssignment returns today's mission, assigning one if needed.
// GET /v1/users/:user_id/assignments/today
func (h *Handler) GetTodayAssignment(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}

	a, err := h.service.TodayAssignment(c.Request().Context(), uid)
	if err != nil {
		return h.writeError(c, err)
	}

	resp := domain.AssignmentResponse{Status: "assigned", Date: h.service.Today(), Assignment: a}
	if a == nil {
		resp.Status = "empty"
	} else {
		resp.Date = a.Date
	}
	return c.JSON(http.StatusOK, resp)
}
