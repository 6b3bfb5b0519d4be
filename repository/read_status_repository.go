package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feed-refresher/models"
)

// readStatusRepository is a read-only view onto the read-tracking
// collaborator's tables. Nothing here mutates.
type readStatusRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewReadStatusRepository creates a new read status repository.
func NewReadStatusRepository(db DBPool, logger *slog.Logger) ReadStatusRepository {
	return &readStatusRepository{
		db:     db,
		logger: logger,
	}
}

// CountUnread counts the feed's articles without a read mark.
func (r *readStatusRepository) CountUnread(ctx context.Context, feedID string) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("failed to count unread articles: database connection is nil")
	}

	query := `
		SELECT COUNT(*)
		FROM articles a
		LEFT JOIN read_status rs ON rs.article_id = a.id AND rs.is_read = TRUE
		WHERE a.feed_id = $1 AND rs.article_id IS NULL
	`

	var count int
	if err := r.db.QueryRow(ctx, query, feedID).Scan(&count); err != nil {
		r.logger.ErrorContext(ctx, "failed to count unread articles", "error", err, "feed_id", feedID)
		return 0, fmt.Errorf("failed to count unread articles: %w", err)
	}

	return count, nil
}

// EngagementWindow aggregates total/read/starred counts over the feed's
// articles published since the cutoff.
func (r *readStatusRepository) EngagementWindow(ctx context.Context, feedID string, since time.Time) (*models.EngagementWindow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to get engagement window: database connection is nil")
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE rs.is_read = TRUE),
		       COUNT(*) FILTER (WHERE rs.is_starred = TRUE)
		FROM articles a
		LEFT JOIN read_status rs ON rs.article_id = a.id
		WHERE a.feed_id = $1 AND a.published_date >= $2
	`

	var window models.EngagementWindow

	err := r.db.QueryRow(ctx, query, feedID, since.UTC()).Scan(
		&window.Total,
		&window.Read,
		&window.Starred,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to get engagement window", "error", err, "feed_id", feedID)
		return nil, fmt.Errorf("failed to get engagement window: %w", err)
	}

	return &window, nil
}
