package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostRateLimiter_WaitForHost(t *testing.T) {
	t.Run("should pass immediately for distinct hosts", func(t *testing.T) {
		limiter := NewHostRateLimiter(time.Minute)

		start := time.Now()
		require.NoError(t, limiter.WaitForHost(context.Background(), "https://a.example.com/rss"))
		require.NoError(t, limiter.WaitForHost(context.Background(), "https://b.example.com/rss"))

		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("should delay the second request to the same host", func(t *testing.T) {
		limiter := NewHostRateLimiter(50 * time.Millisecond)

		require.NoError(t, limiter.WaitForHost(context.Background(), "https://a.example.com/rss"))

		start := time.Now()
		require.NoError(t, limiter.WaitForHost(context.Background(), "https://a.example.com/feed.xml"))

		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("should fail on URLs without a host", func(t *testing.T) {
		limiter := NewHostRateLimiter(time.Second)

		err := limiter.WaitForHost(context.Background(), "not-a-url")

		assert.Error(t, err)
	})

	t.Run("should respect context cancellation while waiting", func(t *testing.T) {
		limiter := NewHostRateLimiter(time.Hour)
		require.NoError(t, limiter.WaitForHost(context.Background(), "https://a.example.com/rss"))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := limiter.WaitForHost(ctx, "https://a.example.com/rss")

		assert.Error(t, err)
	})
}
