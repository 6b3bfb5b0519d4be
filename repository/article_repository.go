package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feed-refresher/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const articleColumns = `id, feed_id, url, guid, title, content, author, tags, thumbnail,
	       published_date, created_at`

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// articleRepository implementation.
type articleRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewArticleRepository creates a new article repository.
func NewArticleRepository(db DBPool, logger *slog.Logger) ArticleRepository {
	return &articleRepository{
		db:     db,
		logger: logger,
	}
}

// FindByFeedAndURL looks up an article by its (feed_id, url) dedup key.
// A missing row returns (nil, nil).
func (r *articleRepository) FindByFeedAndURL(ctx context.Context, feedID, url string) (*models.Article, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to find article by url: database connection is nil")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM articles
		WHERE feed_id = $1 AND url = $2
	`, articleColumns)

	article, err := scanArticle(r.db.QueryRow(ctx, query, feedID, url))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "failed to find article by url", "error", err, "feed_id", feedID, "url", url)
		return nil, fmt.Errorf("failed to find article by url: %w", err)
	}

	return article, nil
}

// FindByFeedAndGUID looks up an article by its (feed_id, guid) dedup key.
// A missing row returns (nil, nil).
func (r *articleRepository) FindByFeedAndGUID(ctx context.Context, feedID, guid string) (*models.Article, error) {
	if r.db == nil {
		return nil, fmt.Errorf("failed to find article by guid: database connection is nil")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM articles
		WHERE feed_id = $1 AND guid = $2
	`, articleColumns)

	article, err := scanArticle(r.db.QueryRow(ctx, query, feedID, guid))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "failed to find article by guid", "error", err, "feed_id", feedID, "guid", guid)
		return nil, fmt.Errorf("failed to find article by guid: %w", err)
	}

	return article, nil
}

// Create inserts a new article. A unique-key race surfaces as
// models.ErrArticleAlreadyExists so the ingester can count it as a
// duplicate instead of a failure.
func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	if r.db == nil {
		return fmt.Errorf("failed to create article: database connection is nil")
	}

	query := `
		INSERT INTO articles (feed_id, url, guid, title, content, author, tags, thumbnail, published_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		article.FeedID,
		article.URL,
		article.GUID,
		article.Title,
		article.Content,
		article.Author,
		article.Tags,
		article.Thumbnail,
		article.PublishedDate,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ErrArticleAlreadyExists
		}

		r.logger.ErrorContext(ctx, "failed to create article", "error", err, "feed_id", article.FeedID, "url", article.URL)

		return fmt.Errorf("failed to create article: %w", err)
	}

	r.logger.DebugContext(ctx, "article created", "feed_id", article.FeedID, "url", article.URL)

	return nil
}

func scanArticle(row pgx.Row) (*models.Article, error) {
	var article models.Article

	err := row.Scan(
		&article.ID,
		&article.FeedID,
		&article.URL,
		&article.GUID,
		&article.Title,
		&article.Content,
		&article.Author,
		&article.Tags,
		&article.Thumbnail,
		&article.PublishedDate,
		&article.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &article, nil
}
