package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/dailymission/internal/domain"
)

// ListRecordings returns the user's recording history.
// GET /v1/users/:user_id/recordings
func (h *Handler) ListRecordings(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 200 {
			limit = val
		}
	}

	entries, err := h.service.ListRecordings(c.Request().Context(), uid, limit)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.RecordingListResponse{Recordings: entries})
}
