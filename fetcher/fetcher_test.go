package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"feed-refresher/config"
	"feed-refresher/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func fastRetryConfig(maxAttempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:   maxAttempts,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func newTestFetcher(maxAttempts int) FeedFetcher {
	return NewFeedFetcherWithClient(
		&http.Client{Timeout: time.Second},
		fastRetryConfig(maxAttempts),
		nil,
		"feed-refresher-test/1.0",
		testLogger(),
	)
}

const sampleRSS = `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title></channel></rss>`

func TestFeedFetcher_Fetch(t *testing.T) {
	t.Run("should return payload and validators on 200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "feed-refresher-test/1.0", r.Header.Get("User-Agent"))
			w.Header().Set("ETag", `"abc123"`)
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			_, _ = w.Write([]byte(sampleRSS))
		}))
		defer srv.Close()

		result := newTestFetcher(3).Fetch(context.Background(), srv.URL, models.CacheValidators{})

		require.True(t, result.OK())
		assert.Equal(t, sampleRSS, string(result.Payload))
		assert.Equal(t, `"abc123"`, result.Validators.ETag)
		assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", result.Validators.LastModified)
	})

	t.Run("should send conditional headers and classify 304", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, `"abc123"`, r.Header.Get("If-None-Match"))
			assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", r.Header.Get("If-Modified-Since"))
			w.WriteHeader(http.StatusNotModified)
		}))
		defer srv.Close()

		result := newTestFetcher(3).Fetch(context.Background(), srv.URL, models.CacheValidators{
			ETag:         `"abc123"`,
			LastModified: "Mon, 02 Jan 2006 15:04:05 GMT",
		})

		assert.Equal(t, StatusNotModified, result.Status)
		assert.Empty(t, result.Payload)
	})

	t.Run("should not retry HTTP errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		result := newTestFetcher(3).Fetch(context.Background(), srv.URL, models.CacheValidators{})

		assert.Equal(t, StatusHTTPError, result.Status)
		assert.Equal(t, http.StatusNotFound, result.StatusCode)
		assert.Equal(t, int32(1), calls.Load())

		var httpErr *models.FetchHTTPError
		require.ErrorAs(t, result.Err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	})

	t.Run("should retry connection errors up to max attempts", func(t *testing.T) {
		// Closed server: every attempt is a connection error.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		result := newTestFetcher(3).Fetch(context.Background(), url, models.CacheValidators{})

		assert.Equal(t, StatusNetworkError, result.Status)
		assert.Error(t, result.Err)
	})

	t.Run("should recover when a retry succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 2 {
				// Hijack and drop the connection to force a transport error.
				hj, ok := w.(http.Hijacker)
				require.True(t, ok)
				conn, _, err := hj.Hijack()
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			_, _ = w.Write([]byte(sampleRSS))
		}))
		defer srv.Close()

		result := newTestFetcher(3).Fetch(context.Background(), srv.URL, models.CacheValidators{})

		require.True(t, result.OK())
		assert.GreaterOrEqual(t, calls.Load(), int32(2))
	})

	t.Run("should classify slow responses as timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		f := NewFeedFetcherWithClient(
			&http.Client{Timeout: 30 * time.Millisecond},
			fastRetryConfig(1),
			nil,
			"feed-refresher-test/1.0",
			testLogger(),
		)

		result := f.Fetch(context.Background(), srv.URL, models.CacheValidators{})

		assert.Equal(t, StatusTimeout, result.Status)
	})
}
