package v1

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/dailymission/internal/domain"
)

// MaxPhotoBytes bounds an uploaded photo.
const MaxPhotoBytes = 10 << 20

// OpenFlow opens or re-enters the user's record flow.
// POST /v1/users/:user_id/flow
func (h *Handler) OpenFlow(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}
	snap, err := h.service.OpenFlow(c.Request().Context(), uid)
	return h.flowResult(c, snap, err)
}

// GetFlow returns the user's flow snapshot.
// GET /v1/users/:user_id/flow
func (h *Handler) GetFlow(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}
	snap, err := h.service.FlowSnapshot(uid)
	return h.flowResult(c, snap, err)
}

// CloseFlow abandons the user's flow.
// DELETE /v1/users/:user_id/flow
func (h *Handler) CloseFlow(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}
	if err := h.service.CloseFlow(uid); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StartFlow begins recording today's mission.
// POST /v1/users/:user_id/flow/start
func (h *Handler) StartFlow(c echo.Context) error {
	return h.flowAction(c, h.service.Start)
}

// SubmitCapture accepts a multipart form with optional "text" and "photo".
// POST /v1/users/:user_id/flow/capture
func (h *Handler) SubmitCapture(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}

	capture := domain.Capture{Text: c.FormValue("text")}
	if fh, err := c.FormFile("photo"); err == nil {
		if fh.Size > MaxPhotoBytes {
			return badRequest(c, "photo_too_large", fmt.Sprintf("photo exceeds %d bytes", MaxPhotoBytes))
		}
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "invalid_photo", "cannot read photo")
		}
		data, err := io.ReadAll(io.LimitReader(f, MaxPhotoBytes+1))
		f.Close()
		if err != nil {
			return badRequest(c, "invalid_photo", "cannot read photo")
		}
		if len(data) > MaxPhotoBytes {
			return badRequest(c, "photo_too_large", fmt.Sprintf("photo exceeds %d bytes", MaxPhotoBytes))
		}
		capture.Photo = data
		capture.PhotoContentType = fh.Header.Get("Content-Type")
		if capture.PhotoContentType == "" || capture.PhotoContentType == "application/octet-stream" {
			capture.PhotoContentType = http.DetectContentType(data)
		}
	} else if err != http.ErrMissingFile {
		h.log.Debug("no photo in capture form", "error", err)
	}

	snap, err := h.service.Capture(c.Request().Context(), uid, capture)
	return h.flowResult(c, snap, err)
}

// LoadQuestion retries loading the reflection question.
// POST /v1/users/:user_id/flow/question
func (h *Handler) LoadQuestion(c echo.Context) error {
	return h.flowAction(c, h.service.LoadQuestion)
}

// SubmitReflection records the chosen option and returns feedback or crisis.
// POST /v1/users/:user_id/flow/reflection
func (h *Handler) SubmitReflection(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}
	var req domain.ReflectionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", "invalid request body")
	}
	snap, err := h.service.Reflect(c.Request().Context(), uid, req.Option)
	return h.flowResult(c, snap, err)
}

// RetryFeedback reruns feedback generation after a failure.
// POST /v1/users/:user_id/flow/feedback/retry
func (h *Handler) RetryFeedback(c echo.Context) error {
	return h.flowAction(c, h.service.RetryFeedback)
}

// AcknowledgeFlow finishes the flow.
// POST /v1/users/:user_id/flow/ack
func (h *Handler) AcknowledgeFlow(c echo.Context) error {
	return h.flowAction(c, h.service.Acknowledge)
}

func (h *Handler) flowAction(c echo.Context, fn func(ctx context.Context, userID string) (*domain.FlowSnapshot, error)) error {
	uid, ok := userID(c)
	if !ok {
		return badRequest(c, "invalid_user", "invalid user_id")
	}
	snap, err := fn(c.Request().Context(), uid)
	return h.flowResult(c, snap, err)
}

// flowResult writes the snapshot, with the error attached when the session
// is still available so clients can show preserved input.
func (h *Handler) flowResult(c echo.Context, snap *domain.FlowSnapshot, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, domain.FlowResponse{Flow: *snap})
	}
	if snap == nil {
		return h.writeError(c, err)
	}
	status, body := apiError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("flow request error", "code", body.Code, "step", snap.Step, "error", err)
	}
	return c.JSON(status, domain.FlowResponse{Flow: *snap, Error: &body})
}
