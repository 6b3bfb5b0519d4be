package models

import (
	"time"
)

// Feed is a subscribed RSS/Atom source together with the refresh
// bookkeeping the orchestrator and scorer maintain for it.
type Feed struct {
	ID                    string     `db:"id"`
	URL                   string     `db:"url"`
	Title                 string     `db:"title"`
	FetchInterval         int        `db:"fetch_interval"`
	IsActive              bool       `db:"is_active"`
	LastFetched           *time.Time `db:"last_fetched"`
	LastChecked           *time.Time `db:"last_checked"`
	LastSuccessfulRefresh *time.Time `db:"last_successful_refresh"`
	PriorityScore         float64    `db:"priority_score"`
	PostingFrequencyDays  float64    `db:"posting_frequency_days"`
	TotalArticlesFetched  int        `db:"total_articles_fetched"`
	UserEngagementScore   float64    `db:"user_engagement_score"`
	ConsecutiveFailures   int        `db:"consecutive_failures"`
	ETag                  string     `db:"etag"`
	LastModified          string     `db:"last_modified"`
}

// CacheValidators carries the conditional-GET headers stored per feed.
type CacheValidators struct {
	ETag         string
	LastModified string
}

// Validators returns the stored conditional-GET validators for the feed.
func (f *Feed) Validators() CacheValidators {
	return CacheValidators{ETag: f.ETag, LastModified: f.LastModified}
}
