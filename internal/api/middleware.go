package api

import (
	"delivery-tracker/internal/platform/obs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// requestID propagates X-Request-ID (or mints one) into the response and the
// request context, so obs.Time entries carry it.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(obs.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

// requestLogger logs end-to-end request duration and response size.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Render errors here so the logged status is the one the client got.
			if err := next(c); err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			logger.Info("request",
				"method", req.Method,
				"path", req.URL.RequestURI(),
				"status", res.Status,
				"bytes", res.Size,
				"dur_ms", time.Since(start).Milliseconds(),
				"req_id", res.Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	}
}
