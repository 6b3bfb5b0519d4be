package models

import (
	"time"
)

// Article is a stored article. Rows are created once by the ingester and
// never mutated afterwards; (feed_id, url) and (feed_id, guid) are unique.
type Article struct {
	ID            string     `db:"id"`
	FeedID        string     `db:"feed_id"`
	URL           string     `db:"url"`
	GUID          string     `db:"guid"`
	Title         string     `db:"title"`
	Content       string     `db:"content"`
	Author        string     `db:"author"`
	Tags          string     `db:"tags"`
	Thumbnail     string     `db:"thumbnail"`
	PublishedDate *time.Time `db:"published_date"`
	CreatedAt     time.Time  `db:"created_at"`
}

// CandidateArticle is one entry extracted from a parsed feed payload,
// before deduplication and sanitization.
type CandidateArticle struct {
	Title     string
	Link      string
	GUID      string
	Author    string
	Content   string
	Thumbnail string
	Tags      []string
	Published *time.Time
}

// IngestStats summarizes one ingestion pass over a feed's candidates.
type IngestStats struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	SkippedOld int `json:"skipped_old"`
	Failed     int `json:"failed"`
}

// EngagementWindow aggregates read-status counts over a recency window.
// It is read-only input supplied by the read-tracking collaborator.
type EngagementWindow struct {
	Total   int
	Read    int
	Starred int
}
