package models

import (
	"time"
)

// PostingHistoryEntry is one row per feed per UTC calendar day with at
// least one newly ingested article. The scorer consumes these rows to
// estimate posting cadence.
type PostingHistoryEntry struct {
	FeedID        string    `db:"feed_id"`
	Date          time.Time `db:"date"`
	ArticlesCount int       `db:"articles_count"`
}
