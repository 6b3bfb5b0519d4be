package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"feed-refresher/models"
)

// SchedulerConfig tunes the periodic auto-refresh loop.
type SchedulerConfig struct {
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RunImmediately bool
}

// Scheduler triggers a full priority-ordered refresh run on a fixed
// interval. Ticks that land while a run is still active are skipped;
// failures to start a run back the ticker off exponentially until a
// start succeeds again.
type Scheduler struct {
	config       SchedulerConfig
	orchestrator RefreshOrchestrator
	logger       *slog.Logger
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewScheduler creates a new refresh scheduler.
func NewScheduler(config SchedulerConfig, o RefreshOrchestrator, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		config:       config,
		orchestrator: o,
		logger:       logger,
	}
}

// Start launches the scheduling loop in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(loopCtx)
	}()
}

// Stop stops the scheduling loop and waits for it to finish. Runs
// already started keep going; only new ticks stop.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	if s.config.RunImmediately {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	backoff := time.Duration(0)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "refresh scheduler stopped")
			return
		case <-ticker.C:
			if s.tick(ctx) {
				if backoff > 0 {
					s.logger.InfoContext(ctx, "scheduler backoff cleared, resuming normal interval")
					backoff = 0
					ticker.Reset(s.config.Interval)
				}
				continue
			}

			backoff = s.nextBackoff(backoff)
			s.logger.WarnContext(ctx, "scheduler backing off", "backoff", backoff)
			ticker.Reset(backoff)
		}
	}
}

// tick starts one scheduled run. Returns false only for errors worth
// backing off on; a still-active run or an empty feed set is normal.
func (s *Scheduler) tick(ctx context.Context) bool {
	status, err := s.orchestrator.StartRefresh(ctx, StartOptions{RecalculatePriorities: true})
	if err != nil {
		if errors.Is(err, models.ErrRunAlreadyActive) {
			s.logger.DebugContext(ctx, "scheduled refresh skipped, run still active")
			return true
		}
		if errors.Is(err, models.ErrNoFeeds) {
			s.logger.DebugContext(ctx, "scheduled refresh skipped, no active feeds")
			return true
		}

		s.logger.ErrorContext(ctx, "scheduled refresh failed to start", "error", err)

		return false
	}

	s.logger.InfoContext(ctx, "scheduled refresh started",
		"run_id", status.RunID,
		"total_feeds", status.Total)

	return true
}

func (s *Scheduler) nextBackoff(current time.Duration) time.Duration {
	initial := s.config.InitialBackoff
	if initial == 0 {
		initial = 30 * time.Second
	}
	maxB := s.config.MaxBackoff
	if maxB == 0 {
		maxB = 5 * time.Minute
	}

	if current == 0 {
		return initial
	}
	next := current * 2
	if next > maxB {
		return maxB
	}
	return next
}
