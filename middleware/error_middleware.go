package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Error string `json:"error"`
}

// ErrorHandler is the centralized Echo error handler. Echo's own HTTP
// errors keep their status; anything else becomes a generic 500 so
// internal details never leak to clients.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ctx := c.Request().Context()
		requestID := RequestIDFromContext(ctx)

		status := http.StatusInternalServerError
		message := "an unexpected error occurred"

		if httpErr, ok := err.(*echo.HTTPError); ok {
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok && status < 500 {
				message = msg
			}
			logger.WarnContext(ctx, "HTTP error",
				"request_id", requestID,
				"status", status,
				"error", err)
		} else {
			logger.ErrorContext(ctx, "unhandled error",
				"request_id", requestID,
				"error", err)
		}

		if err := c.JSON(status, errorBody{Error: message}); err != nil {
			logger.ErrorContext(ctx, "failed to send error response",
				"request_id", requestID,
				"error", err)
		}
	}
}
