package models

import (
	"errors"
	"fmt"
)

var (
	// フィード関連エラー
	ErrFeedNotFound = errors.New("feed not found")
	ErrFeedInactive = errors.New("feed is inactive")
	ErrNoFeeds      = errors.New("no feeds selected for refresh")

	// 記事関連エラー
	ErrArticleAlreadyExists = errors.New("article already exists")

	// リフレッシュ実行関連エラー
	ErrRunNotFound       = errors.New("refresh run not found")
	ErrRunNotCancellable = errors.New("refresh run is not cancellable")
	ErrRunAlreadyActive  = errors.New("a refresh run is already active for this orchestrator")
)

// FetchHTTPError represents a non-2xx, non-304 status from a feed host.
// It is terminal: the fetcher does not retry it.
type FetchHTTPError struct {
	StatusCode int
	URL        string
}

func (e *FetchHTTPError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %q", e.StatusCode, e.URL)
}

// ParseError represents an unrecognizable feed payload.
type ParseError struct {
	URL   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable feed payload from %q: %v", e.URL, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
