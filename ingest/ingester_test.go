package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"feed-refresher/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// stubArticleRepo is an in-memory article store keyed the same way the
// real table is: (feed_id, url) and (feed_id, guid).
type stubArticleRepo struct {
	byURL     map[string]*models.Article
	byGUID    map[string]*models.Article
	created   []*models.Article
	lookupErr error
	createErr error
	failOnURL string
}

func newStubArticleRepo() *stubArticleRepo {
	return &stubArticleRepo{
		byURL:  make(map[string]*models.Article),
		byGUID: make(map[string]*models.Article),
	}
}

func (s *stubArticleRepo) key(feedID, value string) string {
	return feedID + "|" + value
}

func (s *stubArticleRepo) FindByFeedAndURL(_ context.Context, feedID, url string) (*models.Article, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.byURL[s.key(feedID, url)], nil
}

func (s *stubArticleRepo) FindByFeedAndGUID(_ context.Context, feedID, guid string) (*models.Article, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.byGUID[s.key(feedID, guid)], nil
}

func (s *stubArticleRepo) Create(_ context.Context, article *models.Article) error {
	if s.createErr != nil && (s.failOnURL == "" || s.failOnURL == article.URL) {
		return s.createErr
	}
	if s.byURL[s.key(article.FeedID, article.URL)] != nil {
		return models.ErrArticleAlreadyExists
	}
	s.byURL[s.key(article.FeedID, article.URL)] = article
	if article.GUID != "" {
		s.byGUID[s.key(article.FeedID, article.GUID)] = article
	}
	s.created = append(s.created, article)
	return nil
}

func candidate(url string, published *time.Time) models.CandidateArticle {
	return models.CandidateArticle{
		Title:     "Title for " + url,
		Link:      url,
		GUID:      url + "#guid",
		Content:   "<p>body</p>",
		Published: published,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestArticleIngester_Ingest(t *testing.T) {
	feedWithRefresh := func(last time.Time) *models.Feed {
		return &models.Feed{
			ID:                    "feed-1",
			URL:                   "https://blog.example.com/rss",
			IsActive:              true,
			LastSuccessfulRefresh: timePtr(last),
		}
	}

	t.Run("should add new candidates", func(t *testing.T) {
		repo := newStubArticleRepo()
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{
			candidate("https://blog.example.com/a", timePtr(now)),
			candidate("https://blog.example.com/b", timePtr(now)),
		})

		assert.Equal(t, 2, stats.Added)
		assert.Equal(t, 0, stats.Duplicates)
		assert.Equal(t, 0, stats.Failed)
		assert.Len(t, repo.created, 2)
	})

	t.Run("should count existing urls as duplicates", func(t *testing.T) {
		repo := newStubArticleRepo()
		repo.byURL[repo.key("feed-1", "https://blog.example.com/a")] = &models.Article{URL: "https://blog.example.com/a"}
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{
			candidate("https://blog.example.com/a", timePtr(now)),
		})

		assert.Equal(t, 0, stats.Added)
		assert.Equal(t, 1, stats.Duplicates)
	})

	t.Run("should count existing guids as duplicates", func(t *testing.T) {
		repo := newStubArticleRepo()
		repo.byGUID[repo.key("feed-1", "https://old.example.com/a#guid")] = &models.Article{GUID: "https://old.example.com/a#guid"}
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		moved := candidate("https://new.example.com/a", timePtr(now))
		moved.GUID = "https://old.example.com/a#guid"

		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{moved})

		assert.Equal(t, 0, stats.Added)
		assert.Equal(t, 1, stats.Duplicates)
	})

	t.Run("should count an old already-stored article as duplicate, not skipped", func(t *testing.T) {
		repo := newStubArticleRepo()
		repo.byURL[repo.key("feed-1", "https://blog.example.com/archive")] = &models.Article{URL: "https://blog.example.com/archive"}
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-24*time.Hour)), []models.CandidateArticle{
			candidate("https://blog.example.com/archive", timePtr(now.AddDate(0, 0, -3))),
		})

		assert.Equal(t, 1, stats.Duplicates)
		assert.Equal(t, 0, stats.SkippedOld)
		assert.Equal(t, 0, stats.Added)
	})

	t.Run("should skip articles older than both the last refresh and today", func(t *testing.T) {
		repo := newStubArticleRepo()
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{
			candidate("https://blog.example.com/stale", timePtr(now.AddDate(0, 0, -30))),
		})

		assert.Equal(t, 0, stats.Added)
		assert.Equal(t, 1, stats.SkippedOld)
	})

	t.Run("should keep articles published today even when older than the last refresh", func(t *testing.T) {
		repo := newStubArticleRepo()
		ingester := NewArticleIngester(repo, testLogger())

		// Published earlier today, but the feed was refreshed since then.
		now := time.Now().UTC()
		published := now.Add(-time.Minute)

		stats := ingester.Ingest(context.Background(), feedWithRefresh(now), []models.CandidateArticle{
			candidate("https://blog.example.com/today", timePtr(published)),
		})

		assert.Equal(t, 1, stats.Added)
		assert.Equal(t, 0, stats.SkippedOld)
	})

	t.Run("should keep articles without a published date", func(t *testing.T) {
		repo := newStubArticleRepo()
		ingester := NewArticleIngester(repo, testLogger())

		stats := ingester.Ingest(context.Background(), feedWithRefresh(time.Now().UTC()), []models.CandidateArticle{
			candidate("https://blog.example.com/undated", nil),
		})

		assert.Equal(t, 1, stats.Added)
		assert.Equal(t, 0, stats.SkippedOld)
	})

	t.Run("should never skip when the feed has no successful refresh yet", func(t *testing.T) {
		repo := newStubArticleRepo()
		ingester := NewArticleIngester(repo, testLogger())

		feed := &models.Feed{ID: "feed-1", IsActive: true}
		stats := ingester.Ingest(context.Background(), feed, []models.CandidateArticle{
			candidate("https://blog.example.com/ancient", timePtr(time.Now().UTC().AddDate(-1, 0, 0))),
		})

		assert.Equal(t, 1, stats.Added)
		assert.Equal(t, 0, stats.SkippedOld)
	})

	t.Run("should sanitize html content and strip script tags", func(t *testing.T) {
		repo := newStubArticleRepo()
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		c := candidate("https://blog.example.com/xss", timePtr(now))
		c.Content = `<p>hello</p><script>alert("boom")</script>`
		c.Title = `Safe <b>title</b>`

		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{c})

		require.Equal(t, 1, stats.Added)
		stored := repo.created[0]
		assert.Contains(t, stored.Content, "<p>hello</p>")
		assert.NotContains(t, stored.Content, "<script>")
		assert.Equal(t, "Safe title", stored.Title)
	})

	t.Run("should normalize tags", func(t *testing.T) {
		repo := newStubArticleRepo()
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		c := candidate("https://blog.example.com/tagged", timePtr(now))
		c.Tags = []string{" Go ", "RSS", "go", "", "Databases"}

		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{c})

		require.Equal(t, 1, stats.Added)
		assert.Equal(t, "go,rss,databases", repo.created[0].Tags)
	})

	t.Run("should count insert races as duplicates", func(t *testing.T) {
		repo := newStubArticleRepo()
		repo.createErr = models.ErrArticleAlreadyExists
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{
			candidate("https://blog.example.com/raced", timePtr(now)),
		})

		assert.Equal(t, 0, stats.Added)
		assert.Equal(t, 1, stats.Duplicates)
		assert.Equal(t, 0, stats.Failed)
	})

	t.Run("should isolate per-candidate failures", func(t *testing.T) {
		repo := newStubArticleRepo()
		repo.createErr = fmt.Errorf("disk full")
		repo.failOnURL = "https://blog.example.com/bad"
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{
			candidate("https://blog.example.com/bad", timePtr(now)),
			candidate("https://blog.example.com/good", timePtr(now)),
		})

		assert.Equal(t, 1, stats.Added)
		assert.Equal(t, 1, stats.Failed)
	})

	t.Run("should count lookup failures without aborting the pass", func(t *testing.T) {
		repo := newStubArticleRepo()
		repo.lookupErr = fmt.Errorf("connection reset")
		ingester := NewArticleIngester(repo, testLogger())

		now := time.Now().UTC()
		stats := ingester.Ingest(context.Background(), feedWithRefresh(now.Add(-time.Hour)), []models.CandidateArticle{
			candidate("https://blog.example.com/a", timePtr(now)),
			candidate("https://blog.example.com/b", timePtr(now)),
		})

		assert.Equal(t, 2, stats.Failed)
		assert.Equal(t, 0, stats.Added)
	})
}

func TestNormalizeTags(t *testing.T) {
	t.Run("should return empty string for no tags", func(t *testing.T) {
		assert.Equal(t, "", normalizeTags(nil))
	})

	t.Run("should preserve first-seen order", func(t *testing.T) {
		got := normalizeTags([]string{"Zebra", "apple", "ZEBRA"})
		assert.Equal(t, []string{"zebra", "apple"}, strings.Split(got, ","))
	})
}
