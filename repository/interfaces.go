package repository

import (
	"context"
	"time"

	"feed-refresher/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool is the subset of pgxpool.Pool the repositories use. pgxmock
// satisfies it in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// FeedRepository handles feed persistence and refresh bookkeeping.
type FeedRepository interface {
	GetActiveFeeds(ctx context.Context) ([]*models.Feed, error)
	GetFeedsByIDs(ctx context.Context, ids []string) ([]*models.Feed, error)
	GetFeedByID(ctx context.Context, id string) (*models.Feed, error)
	UpdatePriorityScore(ctx context.Context, feedID string, score float64, engagement float64) error
	UpdatePostingFrequency(ctx context.Context, feedID string, days float64) error
	MarkRefreshSuccess(ctx context.Context, feedID string, at time.Time, validators models.CacheValidators, articlesAdded int) error
	MarkRefreshFailure(ctx context.Context, feedID string, at time.Time) error
	GetPriorityStats(ctx context.Context) (*models.PriorityStats, error)
}

// ArticleRepository handles stored-article lookups and inserts.
type ArticleRepository interface {
	FindByFeedAndURL(ctx context.Context, feedID, url string) (*models.Article, error)
	FindByFeedAndGUID(ctx context.Context, feedID, guid string) (*models.Article, error)
	Create(ctx context.Context, article *models.Article) error
}

// PostingHistoryRepository handles the per-day posting counters the
// scorer uses for cadence estimation.
type PostingHistoryRepository interface {
	Upsert(ctx context.Context, feedID string, date time.Time, articlesCount int) error
	GetRecent(ctx context.Context, feedID string, days int) ([]*models.PostingHistoryEntry, error)
}

// ReadStatusRepository is the read-only view onto the read-tracking
// collaborator's data, used exclusively by the scorer.
type ReadStatusRepository interface {
	CountUnread(ctx context.Context, feedID string) (int, error)
	EngagementWindow(ctx context.Context, feedID string, since time.Time) (*models.EngagementWindow, error)
}

// RefreshMetricsRepository persists run summaries.
type RefreshMetricsRepository interface {
	InsertRunSummary(ctx context.Context, summary *models.RunSummary) error
}
