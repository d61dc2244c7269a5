// Package http provides the HTTP server for the mission service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/dailymission/internal/adapter/blob"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/service"
	v1 "github.com/xiaot623/dailymission/internal/transport/http/v1"
)

// BodyLimit bounds request bodies, photos included.
const BodyLimit = "12M"

// NewServer creates the public HTTP server. photoDir, when set, is served
// under blob.LocalRoute for the local photo backend.
func NewServer(svc *service.Service, log *logger.Logger, photoDir string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(BodyLimit))
	e.Use(requestLogger(log.With("component", "http")))

	// Handlers
	v1Handler := v1.NewHandler(svc, log)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	if photoDir != "" {
		e.Static(blob.LocalRoute, photoDir)
	}

	return e
}

// requestLogger writes access logs through zap. The route pattern is logged
// instead of the URI so user ids stay out of the log.
func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []interface{}{
				"method", v.Method,
				"route", v.RoutePath,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				log.Warn("request failed", append(kv, "error", v.Error)...)
				return nil
			}
			log.Info("request", kv...)
			return nil
		},
	})
}
