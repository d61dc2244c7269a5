// Package v1 provides the version 1 HTTP handlers.
package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/flow"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		service: service,
		log:     log.With("component", "v1"),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Assignment API
	e.GET("/v1/users/:user_id/assignments/today", h.GetTodayAssignment)

	// Record flow API
	e.POST("/v1/users/:user_id/flow", h.OpenFlow)
	e.GET("/v1/users/:user_id/flow", h.GetFlow)
	e.DELETE("/v1/users/:user_id/flow", h.CloseFlow)
	e.POST("/v1/users/:user_id/flow/start", h.StartFlow)
	e.POST("/v1/users/:user_id/flow/capture", h.SubmitCapture)
	e.POST("/v1/users/:user_id/flow/question", h.LoadQuestion)
	e.POST("/v1/users/:user_id/flow/reflection", h.SubmitReflection)
	e.POST("/v1/users/:user_id/flow/feedback/retry", h.RetryFeedback)
	e.POST("/v1/users/:user_id/flow/ack", h.AcknowledgeFlow)

	// History API
	e.GET("/v1/users/:user_id/recordings", h.ListRecordings)

	// Safety API
	e.POST("/v1/safety/classify", h.Classify)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	if err := h.service.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// userID reads and validates the :user_id path parameter.
func userID(c echo.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("user_id"))
	if id == "" || len(id) > 128 || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", false
	}
	return id, true
}

func badRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: domain.APIError{Code: code, Message: message}})
}

// apiError maps service errors to a status code and error body.
func apiError(err error) (int, domain.APIError) {
	var (
		transitionErr *domain.TransitionError
		captureErr    *domain.CaptureValidationError
		uploadErr     *domain.UploadError
		persistErr    *domain.PersistError
		feedbackErr   *domain.FeedbackError
		assignmentErr *domain.AssignmentError
	)
	switch {
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusNotFound, domain.APIError{Code: "no_session", Message: "no open flow session; open one first"}
	case errors.As(err, &transitionErr):
		return http.StatusConflict, domain.APIError{Code: "invalid_transition", Message: transitionErr.Error()}
	case errors.As(err, &captureErr):
		return http.StatusUnprocessableEntity, domain.APIError{Code: "invalid_capture", Message: captureErr.Reason}
	case errors.As(err, &uploadErr):
		return http.StatusBadGateway, domain.APIError{Code: "upload_failed", Message: "photo upload failed", Retryable: true}
	case errors.As(err, &feedbackErr):
		return http.StatusBadGateway, domain.APIError{Code: "feedback_failed", Message: "feedback could not be generated", Retryable: feedbackErr.Retryable()}
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, domain.APIError{Code: "persist_failed", Message: "failed to save " + persistErr.What, Retryable: true}
	case errors.As(err, &assignmentErr):
		return http.StatusServiceUnavailable, domain.APIError{Code: "assignment_unavailable", Message: "assignment is temporarily unavailable", Retryable: true}
	case errors.Is(err, flow.ErrQuestionUnavailable):
		return http.StatusServiceUnavailable, domain.APIError{Code: "question_unavailable", Message: err.Error(), Retryable: true}
	default:
		return http.StatusInternalServerError, domain.APIError{Code: "internal", Message: "internal error"}
	}
}

func (h *Handler) writeError(c echo.Context, err error) error {
	status, body := apiError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request error", "code", body.Code, "error", err)
	}
	return c.JSON(status, domain.ErrorResponse{Error: body})
}
