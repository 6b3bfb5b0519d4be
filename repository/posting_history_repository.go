package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feed-refresher/models"
)

// postingHistoryRepository implementation.
type postingHistoryRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPostingHistoryRepository creates a new posting history repository.
func NewPostingHistoryRepository(db DBPool, logger *slog.Logger) PostingHistoryRepository {
	return &postingHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert adds articlesCount to the feed's counter for the given UTC day,
// creating the row on first ingestion of the day.
func (r *postingHistoryRepository) Upsert(ctx context.Context, feedID string, date time.Time, articlesCount int) error {
	if r.db == nil {
		return fmt.Errorf("failed to upsert posting history: database connection is nil")
	}

	if articlesCount <= 0 {
		return fmt.Errorf("articles count must be positive: %d", articlesCount)
	}

	day := date.UTC().Truncate(24 * time.Hour)

	query := `
		INSERT INTO posting_history (feed_id, date, articles_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (feed_id, date)
		DO UPDATE SET articles_count = posting_history.articles_count + EXCLUDED.articles_count
	`

	if _, err := r.db.Exec(ctx, query, feedID, day, articlesCount); err != nil {
		r.logger.ErrorContext(ctx, "failed to upsert posting history", "error", err, "feed_id", feedID)
		return fmt.Errorf("failed to upsert posting history: %w", err)
	}

	r.logger.DebugContext(ctx, "posting history upserted", "feed_id", feedID, "date", day, "articles", articlesCount)

	return nil
}

// GetRecent returns the feed's history rows for the last `days` UTC days,
// newest first.
func (r *postingHistoryRepository) GetRecent(ctx context.Context, feedID string, days int) ([]*models.PostingHistoryEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to get posting history: database connection is nil")
	}

	if days <= 0 {
		return nil, fmt.Errorf("days must be positive: %d", days)
	}

	query := `
		SELECT feed_id, date, articles_count
		FROM posting_history
		WHERE feed_id = $1 AND date >= $2
		ORDER BY date DESC
	`

	cutoff := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)

	rows, err := r.db.Query(ctx, query, feedID, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to get posting history", "error", err, "feed_id", feedID)
		return nil, fmt.Errorf("failed to get posting history: %w", err)
	}
	defer rows.Close()

	var entries []*models.PostingHistoryEntry

	for rows.Next() {
		var entry models.PostingHistoryEntry
		if err := rows.Scan(&entry.FeedID, &entry.Date, &entry.ArticlesCount); err != nil {
			r.logger.ErrorContext(ctx, "failed to scan posting history", "error", err, "feed_id", feedID)
			return nil, fmt.Errorf("failed to scan posting history: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
