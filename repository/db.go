package repository

import (
	"context"
	"fmt"
	"log/slog"

	"feed-refresher/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Init opens the shared connection pool and verifies connectivity.
func Init(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		logger.ErrorContext(ctx, "failed to create connection pool", "error", err)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.ErrorContext(ctx, "failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.InfoContext(ctx, "connected to database", "host", cfg.Host, "dbname", cfg.Name)

	return pool, nil
}
