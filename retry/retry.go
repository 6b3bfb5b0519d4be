package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// ErrorClassifier reports whether an error is worth another attempt.
type ErrorClassifier func(error) bool

type Retrier struct {
	config      Config
	isRetryable ErrorClassifier
	logger      *slog.Logger
}

func NewRetrier(config Config, classifier ErrorClassifier, logger *slog.Logger) *Retrier {
	return &Retrier{
		config:      config,
		isRetryable: classifier,
		logger:      logger,
	}
}

// Do runs operation until it succeeds, exhausts MaxAttempts, or hits a
// non-retryable error. The wait between attempt n and n+1 is
// BaseDelay·BackoffFactor^n, capped at MaxDelay, and is cut short by
// context cancellation.
func (r *Retrier) Do(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				r.logger.InfoContext(ctx, "operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		retryable := r.isRetryable != nil && r.isRetryable(lastErr)
		if attempt == r.config.MaxAttempts || !retryable {
			r.logger.WarnContext(ctx, "operation failed permanently",
				"attempt", attempt,
				"retryable", retryable,
				"error", lastErr)
			break
		}

		delay := r.calculateDelay(attempt)
		r.logger.InfoContext(ctx, "retry backoff wait",
			"attempt", attempt,
			"retry_delay_ms", delay.Milliseconds(),
			"error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retrier) calculateDelay(attempt int) time.Duration {
	// 指数バックオフ: base·factor^attempt
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if r.config.MaxDelay > 0 && delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if r.config.JitterFactor > 0 {
		delay *= 1.0 + (rand.Float64()-0.5)*r.config.JitterFactor
	}

	return time.Duration(delay)
}
