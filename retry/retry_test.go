package retry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:   maxAttempts,
		BaseDelay:     time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetrier_Do(t *testing.T) {
	errTransient := errors.New("connection reset")
	alwaysRetryable := func(error) bool { return true }

	t.Run("should return immediately on success", func(t *testing.T) {
		calls := 0
		r := NewRetrier(fastConfig(3), alwaysRetryable, testLogger())

		err := r.Do(context.Background(), func() error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("should retry transient errors up to max attempts", func(t *testing.T) {
		calls := 0
		r := NewRetrier(fastConfig(3), alwaysRetryable, testLogger())

		err := r.Do(context.Background(), func() error {
			calls++
			return errTransient
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("should succeed when a later attempt recovers", func(t *testing.T) {
		calls := 0
		r := NewRetrier(fastConfig(3), alwaysRetryable, testLogger())

		err := r.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("should not retry non-retryable errors", func(t *testing.T) {
		calls := 0
		errFatal := errors.New("404 not found")
		r := NewRetrier(fastConfig(3), func(err error) bool {
			return !errors.Is(err, errFatal)
		}, testLogger())

		err := r.Do(context.Background(), func() error {
			calls++
			return errFatal
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("should stop waiting on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		r := NewRetrier(Config{
			MaxAttempts:   5,
			BaseDelay:     time.Hour,
			BackoffFactor: 2.0,
		}, alwaysRetryable, testLogger())

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := r.Do(ctx, func() error { return errTransient })

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestRetrier_calculateDelay(t *testing.T) {
	r := NewRetrier(Config{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
	}, nil, testLogger())

	// base·2^attempt: 2s after the first failure, 4s after the second.
	assert.Equal(t, 2*time.Second, r.calculateDelay(1))
	assert.Equal(t, 4*time.Second, r.calculateDelay(2))
	assert.Equal(t, 8*time.Second, r.calculateDelay(3))
}

func TestRetrier_calculateDelay_Cap(t *testing.T) {
	r := NewRetrier(Config{
		MaxAttempts:   10,
		BaseDelay:     time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}, nil, testLogger())

	assert.Equal(t, 5*time.Second, r.calculateDelay(6))
}
