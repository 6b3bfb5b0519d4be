package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"feed-refresher/logger"
)

// Run is the main application entry point. It initializes all
// dependencies, starts the server and the auto-refresh scheduler, then
// waits for a shutdown signal.
func Run(ctx context.Context) error {
	log := logger.Init()

	log.Info("starting feed-refresher service")

	deps, cleanup, err := BuildDependencies(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to build dependencies: %w", err)
	}
	defer cleanup()

	httpServer := NewHTTPServer(deps)
	StartHTTPServer(httpServer, deps.Config.Server.Port, log)

	if deps.Scheduler != nil {
		log.Info("starting auto-refresh scheduler",
			"interval", deps.Config.Refresh.AutoRefreshInterval)
		deps.Scheduler.Start(ctx)
	}

	log.Info("feed-refresher service started successfully")
	waitForShutdown(httpServer, deps, log)

	return nil
}

func waitForShutdown(httpServer interface{ Shutdown(context.Context) error }, deps *Dependencies, log *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down feed-refresher service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()

	if deps.Scheduler != nil {
		deps.Scheduler.Stop()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error shutting down HTTP server", "error", err)
	}

	log.Info("feed-refresher service stopped")
}
