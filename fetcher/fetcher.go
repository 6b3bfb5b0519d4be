package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"feed-refresher/config"
	"feed-refresher/models"
	"feed-refresher/ratelimit"
	"feed-refresher/retry"
)

// FetchStatus tags the terminal outcome of one conditional GET.
type FetchStatus int

const (
	StatusOK FetchStatus = iota
	StatusNotModified
	StatusHTTPError
	StatusNetworkError
	StatusTimeout
)

func (s FetchStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotModified:
		return "not_modified"
	case StatusHTTPError:
		return "http_error"
	case StatusNetworkError:
		return "network_error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// FetchResult is the terminal result of one fetch, after internal retries.
type FetchResult struct {
	Status     FetchStatus
	Payload    []byte
	Validators models.CacheValidators
	StatusCode int
	Err        error
}

// OK reports whether the fetch produced a usable payload.
func (r *FetchResult) OK() bool {
	return r.Status == StatusOK
}

// FeedFetcher performs one conditional HTTP GET per call. Transient
// failures are retried internally; the returned result is terminal.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, validators models.CacheValidators) *FetchResult
}

type feedFetcher struct {
	client      *http.Client
	retrier     *retry.Retrier
	rateLimiter *ratelimit.HostRateLimiter
	userAgent   string
	logger      *slog.Logger
}

// maxPayloadBytes bounds how much of a feed body is read. Feeds past this
// size are almost certainly not RSS/Atom.
const maxPayloadBytes = 10 << 20

// NewFeedFetcher creates a fetcher with the given HTTP and retry settings.
func NewFeedFetcher(httpCfg config.HTTPConfig, retryCfg config.RetryConfig, rateLimiter *ratelimit.HostRateLimiter, logger *slog.Logger) FeedFetcher {
	retrier := retry.NewRetrier(retry.Config{
		MaxAttempts:   retryCfg.MaxAttempts,
		BaseDelay:     retryCfg.BaseDelay,
		MaxDelay:      retryCfg.MaxDelay,
		BackoffFactor: retryCfg.BackoffFactor,
		JitterFactor:  retryCfg.JitterFactor,
	}, isTransient, logger)

	return &feedFetcher{
		client: &http.Client{
			Timeout: httpCfg.Timeout,
		},
		retrier:     retrier,
		rateLimiter: rateLimiter,
		userAgent:   httpCfg.UserAgent,
		logger:      logger,
	}
}

// NewFeedFetcherWithClient allows tests to inject a custom HTTP client.
func NewFeedFetcherWithClient(client *http.Client, retryCfg config.RetryConfig, rateLimiter *ratelimit.HostRateLimiter, userAgent string, logger *slog.Logger) FeedFetcher {
	retrier := retry.NewRetrier(retry.Config{
		MaxAttempts:   retryCfg.MaxAttempts,
		BaseDelay:     retryCfg.BaseDelay,
		MaxDelay:      retryCfg.MaxDelay,
		BackoffFactor: retryCfg.BackoffFactor,
		JitterFactor:  retryCfg.JitterFactor,
	}, isTransient, logger)

	return &feedFetcher{
		client:      client,
		retrier:     retrier,
		rateLimiter: rateLimiter,
		userAgent:   userAgent,
		logger:      logger,
	}
}

// transientError marks a fetch error as retryable for the retrier.
type transientError struct {
	cause error
}

func (e *transientError) Error() string { return e.cause.Error() }
func (e *transientError) Unwrap() error { return e.cause }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Fetch issues a conditional GET. Timeouts and connection errors are
// retried with exponential backoff; HTTP errors and 304 return at once.
// Fetch never mutates any state.
func (f *feedFetcher) Fetch(ctx context.Context, url string, validators models.CacheValidators) *FetchResult {
	var result *FetchResult

	err := f.retrier.Do(ctx, func() error {
		result = f.fetchOnce(ctx, url, validators)
		if result.Status == StatusNetworkError || result.Status == StatusTimeout {
			return &transientError{cause: result.Err}
		}
		return nil
	})

	if err != nil && result == nil {
		result = &FetchResult{Status: StatusNetworkError, Err: err}
	}

	f.logger.InfoContext(ctx, "fetch finished",
		"url", url,
		"status", result.Status.String(),
		"status_code", result.StatusCode,
		"payload_bytes", len(result.Payload))

	return result
}

func (f *feedFetcher) fetchOnce(ctx context.Context, url string, validators models.CacheValidators) *FetchResult {
	if f.rateLimiter != nil {
		if err := f.rateLimiter.WaitForHost(ctx, url); err != nil {
			return &FetchResult{Status: StatusNetworkError, Err: fmt.Errorf("rate limiting failed: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchResult{Status: StatusNetworkError, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if validators.ETag != "" {
		req.Header.Set("If-None-Match", validators.ETag)
	}
	if validators.LastModified != "" {
		req.Header.Set("If-Modified-Since", validators.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return &FetchResult{Status: StatusTimeout, Err: err}
		}
		return &FetchResult{Status: StatusNetworkError, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &FetchResult{Status: StatusNotModified, StatusCode: resp.StatusCode}

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
		if readErr != nil {
			if isTimeoutErr(readErr) {
				return &FetchResult{Status: StatusTimeout, Err: readErr}
			}
			return &FetchResult{Status: StatusNetworkError, Err: readErr}
		}

		return &FetchResult{
			Status:     StatusOK,
			Payload:    payload,
			StatusCode: resp.StatusCode,
			Validators: models.CacheValidators{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			},
		}

	default:
		return &FetchResult{
			Status:     StatusHTTPError,
			StatusCode: resp.StatusCode,
			Err:        &models.FetchHTTPError{StatusCode: resp.StatusCode, URL: url},
		}
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
