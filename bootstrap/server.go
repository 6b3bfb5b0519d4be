package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	appmiddleware "feed-refresher/middleware"
)

// NewHTTPServer creates and configures the Echo HTTP server.
func NewHTTPServer(deps *Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = appmiddleware.ErrorHandler(deps.Logger)

	e.Use(appmiddleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/v1/health" || path == "/v1/health/ready"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			deps.Logger.InfoContext(ctx, "HTTP request completed",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"error", v.Error)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/v1/health", deps.HealthHandler.Health)
	e.GET("/v1/health/ready", deps.HealthHandler.Ready)

	api := e.Group("/api/v1")
	api.POST("/refresh", deps.RefreshHandler.StartRefresh)
	api.GET("/refresh/:run_id", deps.RefreshHandler.GetRunStatus)
	api.POST("/refresh/:run_id/cancel", deps.RefreshHandler.CancelRun)
	api.POST("/feeds/:id/refresh", deps.RefreshHandler.RefreshSingleFeed)
	api.GET("/feeds/priority/stats", deps.RefreshHandler.GetPriorityStats)
	api.GET("/metrics", deps.RefreshHandler.GetMetrics)

	return e
}

// StartHTTPServer starts the HTTP server in a goroutine.
func StartHTTPServer(e *echo.Echo, port int, log *slog.Logger) {
	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info("starting HTTP server", "port", port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()
}
