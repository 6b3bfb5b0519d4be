package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feed-refresher/models"

	"github.com/jackc/pgx/v5"
)

const feedColumns = `id, url, title, fetch_interval, is_active, last_fetched, last_checked,
	       last_successful_refresh, priority_score, posting_frequency_days,
	       total_articles_fetched, user_engagement_score, consecutive_failures,
	       COALESCE(etag, ''), COALESCE(last_modified, '')`

// feedRepository implementation.
type feedRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewFeedRepository creates a new feed repository.
func NewFeedRepository(db DBPool, logger *slog.Logger) FeedRepository {
	return &feedRepository{
		db:     db,
		logger: logger,
	}
}

// GetActiveFeeds returns all active feeds in insertion order.
func (r *feedRepository) GetActiveFeeds(ctx context.Context) ([]*models.Feed, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to get active feeds: database connection is nil")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM feeds
		WHERE is_active = TRUE
		ORDER BY created_at, id
	`, feedColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to get active feeds", "error", err)
		return nil, fmt.Errorf("failed to get active feeds: %w", err)
	}
	defer rows.Close()

	feeds, err := scanFeeds(rows)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to scan active feeds", "error", err)
		return nil, fmt.Errorf("failed to scan active feeds: %w", err)
	}

	r.logger.InfoContext(ctx, "got active feeds", "count", len(feeds))

	return feeds, nil
}

// GetFeedsByIDs returns the feeds matching ids, preserving the order of ids.
func (r *feedRepository) GetFeedsByIDs(ctx context.Context, ids []string) ([]*models.Feed, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to get feeds by ids: database connection is nil")
	}

	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM feeds
		WHERE id = ANY($1)
	`, feedColumns)

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to get feeds by ids", "error", err)
		return nil, fmt.Errorf("failed to get feeds by ids: %w", err)
	}
	defer rows.Close()

	feeds, err := scanFeeds(rows)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to scan feeds by ids", "error", err)
		return nil, fmt.Errorf("failed to scan feeds by ids: %w", err)
	}

	// Preserve caller order so priority ties resolve deterministically.
	byID := make(map[string]*models.Feed, len(feeds))
	for _, feed := range feeds {
		byID[feed.ID] = feed
	}

	ordered := make([]*models.Feed, 0, len(feeds))
	for _, id := range ids {
		if feed, ok := byID[id]; ok {
			ordered = append(ordered, feed)
		}
	}

	return ordered, nil
}

// GetFeedByID returns a single feed or models.ErrFeedNotFound.
func (r *feedRepository) GetFeedByID(ctx context.Context, id string) (*models.Feed, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to get feed: database connection is nil")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM feeds
		WHERE id = $1
	`, feedColumns)

	feed, err := scanFeed(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrFeedNotFound
		}
		r.logger.ErrorContext(ctx, "failed to get feed", "error", err, "feed_id", id)
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

// UpdatePriorityScore persists the recomputed score and cached engagement.
func (r *feedRepository) UpdatePriorityScore(ctx context.Context, feedID string, score float64, engagement float64) error {
	if r.db == nil {
		return fmt.Errorf("failed to update priority score: database connection is nil")
	}

	query := `
		UPDATE feeds
		SET priority_score = $2, user_engagement_score = $3
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, feedID, score, engagement); err != nil {
		r.logger.ErrorContext(ctx, "failed to update priority score", "error", err, "feed_id", feedID)
		return fmt.Errorf("failed to update priority score: %w", err)
	}

	return nil
}

// UpdatePostingFrequency caches the derived posting cadence on the feed.
func (r *feedRepository) UpdatePostingFrequency(ctx context.Context, feedID string, days float64) error {
	if r.db == nil {
		return fmt.Errorf("failed to update posting frequency: database connection is nil")
	}

	query := `
		UPDATE feeds
		SET posting_frequency_days = $2
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, feedID, days); err != nil {
		r.logger.ErrorContext(ctx, "failed to update posting frequency", "error", err, "feed_id", feedID)
		return fmt.Errorf("failed to update posting frequency: %w", err)
	}

	return nil
}

// MarkRefreshSuccess resets the failure counter, stamps the refresh
// timestamps, stores the returned validators, and bumps the fetched total.
func (r *feedRepository) MarkRefreshSuccess(ctx context.Context, feedID string, at time.Time, validators models.CacheValidators, articlesAdded int) error {
	if r.db == nil {
		return fmt.Errorf("failed to mark refresh success: database connection is nil")
	}

	query := `
		UPDATE feeds
		SET consecutive_failures = 0,
		    last_fetched = $2,
		    last_checked = $2,
		    last_successful_refresh = $2,
		    etag = $3,
		    last_modified = $4,
		    total_articles_fetched = total_articles_fetched + $5
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, feedID, at, validators.ETag, validators.LastModified, articlesAdded); err != nil {
		r.logger.ErrorContext(ctx, "failed to mark refresh success", "error", err, "feed_id", feedID)
		return fmt.Errorf("failed to mark refresh success: %w", err)
	}

	r.logger.InfoContext(ctx, "marked refresh success", "feed_id", feedID, "articles_added", articlesAdded)

	return nil
}

// MarkRefreshFailure increments consecutive_failures by exactly one.
func (r *feedRepository) MarkRefreshFailure(ctx context.Context, feedID string, at time.Time) error {
	if r.db == nil {
		return fmt.Errorf("failed to mark refresh failure: database connection is nil")
	}

	query := `
		UPDATE feeds
		SET consecutive_failures = consecutive_failures + 1,
		    last_checked = $2
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, feedID, at); err != nil {
		r.logger.ErrorContext(ctx, "failed to mark refresh failure", "error", err, "feed_id", feedID)
		return fmt.Errorf("failed to mark refresh failure: %w", err)
	}

	r.logger.WarnContext(ctx, "marked refresh failure", "feed_id", feedID)

	return nil
}

// GetPriorityStats aggregates stored scores of active feeds in one query.
func (r *feedRepository) GetPriorityStats(ctx context.Context) (*models.PriorityStats, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to get priority stats: database connection is nil")
	}

	query := `
		SELECT COUNT(*),
		       COALESCE(AVG(priority_score), 0),
		       COALESCE(MIN(priority_score), 0),
		       COALESCE(MAX(priority_score), 0),
		       COUNT(*) FILTER (WHERE priority_score < 0.3),
		       COUNT(*) FILTER (WHERE priority_score >= 0.3 AND priority_score < 0.7),
		       COUNT(*) FILTER (WHERE priority_score >= 0.7)
		FROM feeds
		WHERE is_active = TRUE
	`

	var stats models.PriorityStats

	err := r.db.QueryRow(ctx, query).Scan(
		&stats.Count,
		&stats.Average,
		&stats.Min,
		&stats.Max,
		&stats.LowCount,
		&stats.MediumCount,
		&stats.HighCount,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to get priority stats", "error", err)
		return nil, fmt.Errorf("failed to get priority stats: %w", err)
	}

	return &stats, nil
}

func scanFeeds(rows pgx.Rows) ([]*models.Feed, error) {
	var feeds []*models.Feed

	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

func scanFeed(row pgx.Row) (*models.Feed, error) {
	var feed models.Feed

	err := row.Scan(
		&feed.ID,
		&feed.URL,
		&feed.Title,
		&feed.FetchInterval,
		&feed.IsActive,
		&feed.LastFetched,
		&feed.LastChecked,
		&feed.LastSuccessfulRefresh,
		&feed.PriorityScore,
		&feed.PostingFrequencyDays,
		&feed.TotalArticlesFetched,
		&feed.UserEngagementScore,
		&feed.ConsecutiveFailures,
		&feed.ETag,
		&feed.LastModified,
	)
	if err != nil {
		return nil, err
	}

	return &feed, nil
}
