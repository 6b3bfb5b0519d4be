package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"feed-refresher/models"
	"feed-refresher/repository"

	"github.com/microcosm-cc/bluemonday"
)

// ArticleIngester turns parsed candidates into stored articles.
type ArticleIngester interface {
	Ingest(ctx context.Context, feed *models.Feed, candidates []models.CandidateArticle) *models.IngestStats
}

type articleIngester struct {
	articleRepo   repository.ArticleRepository
	contentPolicy *bluemonday.Policy
	textPolicy    *bluemonday.Policy
	logger        *slog.Logger
}

// NewArticleIngester creates a new article ingester.
func NewArticleIngester(articleRepo repository.ArticleRepository, logger *slog.Logger) ArticleIngester {
	return &articleIngester{
		articleRepo:   articleRepo,
		contentPolicy: bluemonday.UGCPolicy(),
		textPolicy:    bluemonday.StrictPolicy(),
		logger:        logger,
	}
}

// Ingest runs one pass over a feed's candidates: dedup by URL then GUID,
// recency skip for new candidates, sanitization, insert. One candidate
// failing never aborts the rest; the caller reads the outcome from the
// returned stats.
func (i *articleIngester) Ingest(ctx context.Context, feed *models.Feed, candidates []models.CandidateArticle) *models.IngestStats {
	stats := &models.IngestStats{}

	dayStart := startOfUTCDay(time.Now())

	for idx := range candidates {
		candidate := &candidates[idx]

		// Already-stored candidates count as duplicates regardless of age.
		duplicate, err := i.isDuplicate(ctx, feed.ID, candidate)
		if err != nil {
			i.logger.ErrorContext(ctx, "failed to check for duplicate article",
				"error", err, "feed_id", feed.ID, "url", candidate.Link)
			stats.Failed++
			continue
		}
		if duplicate {
			stats.Duplicates++
			continue
		}

		if i.isTooOld(feed, candidate, dayStart) {
			stats.SkippedOld++
			continue
		}

		article := i.buildArticle(feed.ID, candidate)

		if err := i.articleRepo.Create(ctx, article); err != nil {
			// Concurrent insert of the same key counts as a duplicate,
			// not a failure.
			if errors.Is(err, models.ErrArticleAlreadyExists) {
				stats.Duplicates++
				continue
			}

			i.logger.ErrorContext(ctx, "failed to store article",
				"error", err, "feed_id", feed.ID, "url", candidate.Link)
			stats.Failed++
			continue
		}

		stats.Added++
	}

	i.logger.InfoContext(ctx, "ingestion pass finished",
		"feed_id", feed.ID,
		"candidates", len(candidates),
		"added", stats.Added,
		"duplicates", stats.Duplicates,
		"skipped_old", stats.SkippedOld,
		"failed", stats.Failed)

	return stats
}

// isTooOld skips a candidate only when its published date is earlier than
// the feed's last successful refresh AND earlier than the start of the
// current UTC day. Articles without a published date are always ingested.
func (i *articleIngester) isTooOld(feed *models.Feed, candidate *models.CandidateArticle, dayStart time.Time) bool {
	if candidate.Published == nil || feed.LastSuccessfulRefresh == nil {
		return false
	}

	published := candidate.Published.UTC()

	return published.Before(feed.LastSuccessfulRefresh.UTC()) && published.Before(dayStart)
}

func (i *articleIngester) isDuplicate(ctx context.Context, feedID string, candidate *models.CandidateArticle) (bool, error) {
	existing, err := i.articleRepo.FindByFeedAndURL(ctx, feedID, candidate.Link)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return true, nil
	}

	if candidate.GUID == "" {
		return false, nil
	}

	existing, err = i.articleRepo.FindByFeedAndGUID(ctx, feedID, candidate.GUID)
	if err != nil {
		return false, err
	}

	return existing != nil, nil
}

func (i *articleIngester) buildArticle(feedID string, candidate *models.CandidateArticle) *models.Article {
	var published *time.Time
	if candidate.Published != nil {
		utc := candidate.Published.UTC()
		published = &utc
	}

	return &models.Article{
		FeedID:        feedID,
		URL:           candidate.Link,
		GUID:          candidate.GUID,
		Title:         strings.TrimSpace(i.textPolicy.Sanitize(candidate.Title)),
		Content:       i.contentPolicy.Sanitize(candidate.Content),
		Author:        strings.TrimSpace(i.textPolicy.Sanitize(candidate.Author)),
		Tags:          normalizeTags(candidate.Tags),
		Thumbnail:     candidate.Thumbnail,
		PublishedDate: published,
	}
}

// normalizeTags lowercases, trims, and dedupes tags, keeping first-seen
// order, and joins them with commas for storage.
func normalizeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	seen := make(map[string]bool, len(tags))
	normalized := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		normalized = append(normalized, tag)
	}

	return strings.Join(normalized, ",")
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
