package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID extracts the X-Request-ID header or generates one, binds it
// to the request context, and echoes it back on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(req.Context(), requestIDKey, requestID)
			c.SetRequest(req.WithContext(ctx))

			c.Response().Header().Set("X-Request-ID", requestID)

			return next(c)
		}
	}
}

// RequestIDFromContext returns the request id bound by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
