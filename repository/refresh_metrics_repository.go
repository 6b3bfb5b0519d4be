package repository

import (
	"context"
	"fmt"
	"log/slog"

	"feed-refresher/models"
)

// refreshMetricsRepository implementation.
type refreshMetricsRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewRefreshMetricsRepository creates a new refresh metrics repository.
func NewRefreshMetricsRepository(db DBPool, logger *slog.Logger) RefreshMetricsRepository {
	return &refreshMetricsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertRunSummary persists one metrics row per terminal run.
func (r *refreshMetricsRepository) InsertRunSummary(ctx context.Context, summary *models.RunSummary) error {
	if r.db == nil {
		return fmt.Errorf("failed to insert run summary: database connection is nil")
	}

	if summary == nil {
		return fmt.Errorf("run summary cannot be nil")
	}

	query := `
		INSERT INTO refresh_metrics
			(run_id, state, feeds_processed, feeds_successful, feeds_failed,
			 batch_size, duration_ms, algorithm_version, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		summary.RunID,
		string(summary.State),
		summary.FeedsProcessed,
		summary.FeedsSuccessful,
		summary.FeedsFailed,
		summary.BatchSize,
		summary.Duration.Milliseconds(),
		summary.AlgorithmVersion,
		summary.StartedAt,
		summary.CompletedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to insert run summary", "error", err, "run_id", summary.RunID)
		return fmt.Errorf("failed to insert run summary: %w", err)
	}

	r.logger.InfoContext(ctx, "run summary persisted",
		"run_id", summary.RunID,
		"state", summary.State,
		"feeds_processed", summary.FeedsProcessed,
		"duration_ms", summary.Duration.Milliseconds())

	return nil
}
