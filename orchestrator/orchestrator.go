package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"feed-refresher/config"
	"feed-refresher/fetcher"
	"feed-refresher/ingest"
	"feed-refresher/metrics"
	"feed-refresher/models"
	"feed-refresher/parser"
	"feed-refresher/repository"
	"feed-refresher/retry"
	"feed-refresher/scorer"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// algorithmVersion tags persisted run summaries with the scoring
// algorithm that ordered the run.
const algorithmVersion = "priority-v2"

// StartOptions selects and tunes one refresh run. Zero values fall back
// to configuration defaults; an empty FeedIDs targets all active feeds.
type StartOptions struct {
	FeedIDs               []string
	BatchSize             int
	InterBatchDelay       *time.Duration
	RecalculatePriorities bool
}

// RefreshOrchestrator drives priority-ordered refresh runs.
type RefreshOrchestrator interface {
	StartRefresh(ctx context.Context, opts StartOptions) (*models.RunStatus, error)
	RunStatus(runID string) (*models.RunStatus, error)
	CancelRun(runID string) error
	RefreshSingleFeed(ctx context.Context, feedID string, maxRetries int) (*models.RefreshOutcome, error)
}

type refreshOrchestrator struct {
	feedRepo    repository.FeedRepository
	historyRepo repository.PostingHistoryRepository
	metricsRepo repository.RefreshMetricsRepository
	fetcher     fetcher.FeedFetcher
	parser      parser.FeedParser
	ingester    ingest.ArticleIngester
	scorer      scorer.PriorityScorer
	collector   *metrics.Collector
	registry    *RunRegistry
	refreshCfg  config.RefreshConfig
	retryCfg    config.RetryConfig
	logger      *slog.Logger
}

// NewRefreshOrchestrator creates a new refresh orchestrator.
func NewRefreshOrchestrator(
	feedRepo repository.FeedRepository,
	historyRepo repository.PostingHistoryRepository,
	metricsRepo repository.RefreshMetricsRepository,
	feedFetcher fetcher.FeedFetcher,
	feedParser parser.FeedParser,
	ingester ingest.ArticleIngester,
	priorityScorer scorer.PriorityScorer,
	collector *metrics.Collector,
	refreshCfg config.RefreshConfig,
	retryCfg config.RetryConfig,
	logger *slog.Logger,
) RefreshOrchestrator {
	return &refreshOrchestrator{
		feedRepo:    feedRepo,
		historyRepo: historyRepo,
		metricsRepo: metricsRepo,
		fetcher:     feedFetcher,
		parser:      feedParser,
		ingester:    ingester,
		scorer:      priorityScorer,
		collector:   collector,
		registry:    NewRunRegistry(),
		refreshCfg:  refreshCfg,
		retryCfg:    retryCfg,
		logger:      logger,
	}
}

// StartRefresh snapshots the target feed set, orders it by priority, and
// launches the run asynchronously. Only reading the feed set can fail;
// everything after that is reported through the run's status.
func (o *refreshOrchestrator) StartRefresh(ctx context.Context, opts StartOptions) (*models.RunStatus, error) {
	if o.registry.HasActiveRun() {
		return nil, models.ErrRunAlreadyActive
	}

	feeds, err := o.snapshotFeeds(ctx, opts.FeedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot feed set: %w", err)
	}
	if len(feeds) == 0 {
		return nil, models.ErrNoFeeds
	}

	if opts.RecalculatePriorities {
		if _, err := o.scorer.ScoreAll(ctx, feeds); err != nil {
			return nil, fmt.Errorf("failed to recalculate priorities: %w", err)
		}
	}

	// Descending by score; ties keep snapshot order.
	sort.SliceStable(feeds, func(i, j int) bool {
		return feeds[i].PriorityScore > feeds[j].PriorityScore
	})

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = o.refreshCfg.DefaultBatchSize
	}

	delay := o.refreshCfg.InterBatchDelay
	if opts.InterBatchDelay != nil {
		delay = *opts.InterBatchDelay
	}

	run := &models.RefreshRun{
		ID:         uuid.New().String(),
		State:      models.RunStateRunning,
		TotalFeeds: len(feeds),
		BatchSize:  batchSize,
		StartedAt:  time.Now().UTC(),
		Errors:     make(map[string]*models.FeedError),
	}

	handle := newRunHandle(run)
	o.registry.register(handle)

	o.logger.InfoContext(ctx, "refresh run starting",
		"run_id", run.ID,
		"total_feeds", run.TotalFeeds,
		"batch_size", batchSize,
		"inter_batch_delay", delay)

	// The run outlives the caller's request.
	go o.execute(context.WithoutCancel(ctx), handle, feeds, batchSize, delay)

	return handle.status(), nil
}

// RunStatus returns a snapshot of the run's progress.
func (o *refreshOrchestrator) RunStatus(runID string) (*models.RunStatus, error) {
	return o.registry.Status(runID)
}

// CancelRun requests cooperative cancellation.
func (o *refreshOrchestrator) CancelRun(runID string) error {
	return o.registry.Cancel(runID)
}

func (o *refreshOrchestrator) snapshotFeeds(ctx context.Context, feedIDs []string) ([]*models.Feed, error) {
	if len(feedIDs) > 0 {
		feeds, err := o.feedRepo.GetFeedsByIDs(ctx, feedIDs)
		if err != nil {
			return nil, err
		}

		active := make([]*models.Feed, 0, len(feeds))
		for _, feed := range feeds {
			if feed.IsActive {
				active = append(active, feed)
			}
		}

		return active, nil
	}

	return o.feedRepo.GetActiveFeeds(ctx)
}

// execute runs the batches in priority order. Cancellation is observed
// at exactly two points: before a batch starts and during the
// inter-batch delay. In-flight refreshes always finish.
func (o *refreshOrchestrator) execute(ctx context.Context, handle *runHandle, feeds []*models.Feed, batchSize int, delay time.Duration) {
	runID := handle.run.ID
	batches := partition(feeds, batchSize)
	cancelled := false

	for i, batch := range batches {
		select {
		case <-handle.cancelRequested():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		o.logger.InfoContext(ctx, "refresh batch starting",
			"run_id", runID,
			"batch", i+1,
			"batches", len(batches),
			"feeds", len(batch))

		for _, outcome := range o.refreshBatch(ctx, batch, batchSize) {
			handle.recordOutcome(outcome)
			o.collector.RecordFeedRefresh(!outcome.Failed(), outcome.ArticlesAdded, outcome.NotModified)
		}

		if i < len(batches)-1 && delay > 0 {
			select {
			case <-handle.cancelRequested():
				cancelled = true
			case <-time.After(delay):
			}
		}
	}

	o.finishRun(ctx, handle, cancelled)
}

func (o *refreshOrchestrator) finishRun(ctx context.Context, handle *runHandle, cancelled bool) {
	now := time.Now().UTC()

	if cancelled {
		handle.finish(models.RunStateCancelled, now)
		o.collector.RecordRunCancelled()
	} else {
		handle.finish(models.RunStateCompleted, now)
		o.collector.RecordRunCompleted()
	}

	summary := handle.summary(algorithmVersion)

	if err := o.metricsRepo.InsertRunSummary(ctx, summary); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist run summary", "error", err, "run_id", summary.RunID)
	}

	o.logger.InfoContext(ctx, "refresh run finished",
		"run_id", summary.RunID,
		"state", summary.State,
		"feeds_processed", summary.FeedsProcessed,
		"feeds_successful", summary.FeedsSuccessful,
		"feeds_failed", summary.FeedsFailed,
		"duration_ms", summary.Duration.Milliseconds())
}

// refreshBatch refreshes one batch with bounded concurrency. Workers
// never return errors; failures live in the outcomes.
func (o *refreshOrchestrator) refreshBatch(ctx context.Context, batch []*models.Feed, batchSize int) []models.RefreshOutcome {
	outcomes := make([]models.RefreshOutcome, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(batchSize)

	for i, feed := range batch {
		i, feed := i, feed
		g.Go(func() error {
			outcomes[i] = o.refreshFeed(ctx, feed)
			return nil
		})
	}

	g.Wait()

	return outcomes
}

// refreshFeed runs the pipeline for one feed and stamps the failure
// counter on a terminal failure. Never panics a batch: every error lands
// in the returned outcome.
func (o *refreshOrchestrator) refreshFeed(ctx context.Context, feed *models.Feed) models.RefreshOutcome {
	outcome := o.runPipeline(ctx, feed)

	if outcome.Failed() {
		o.markFailure(ctx, feed, time.Now().UTC())
	}

	return outcome
}

// runPipeline drives fetch, parse, and ingest for one feed, updating the
// success-side bookkeeping only. Failure counters are the caller's job,
// so retry loops can count one terminal failure per exhausted attempt
// series.
func (o *refreshOrchestrator) runPipeline(ctx context.Context, feed *models.Feed) models.RefreshOutcome {
	outcome := models.RefreshOutcome{FeedID: feed.ID}
	now := time.Now().UTC()

	fetchStart := time.Now()
	result := o.fetcher.Fetch(ctx, feed.URL, feed.Validators())
	fetchTime := time.Since(fetchStart)

	host := hostOf(feed.URL)

	switch result.Status {
	case fetcher.StatusNotModified:
		o.collector.RecordFetch(host, fetchTime, true, true)
		outcome.NotModified = true

		// Unchanged upstream still counts as a successful refresh; the
		// stored validators remain valid.
		if err := o.feedRepo.MarkRefreshSuccess(ctx, feed.ID, now, feed.Validators(), 0); err != nil {
			o.logger.ErrorContext(ctx, "failed to mark refresh success", "error", err, "feed_id", feed.ID)
		}

		return outcome

	case fetcher.StatusOK:
		o.collector.RecordFetch(host, fetchTime, true, false)

	default:
		o.collector.RecordFetch(host, fetchTime, false, false)
		outcome.Err = result.Err

		return outcome
	}

	candidates, err := o.parser.Parse(result.Payload, feed.URL)
	if err != nil {
		outcome.Err = err

		return outcome
	}

	stats := o.ingester.Ingest(ctx, feed, candidates)
	outcome.ArticlesAdded = stats.Added
	outcome.Duplicates = stats.Duplicates
	outcome.SkippedOld = stats.SkippedOld

	validators := result.Validators
	if validators.ETag == "" && validators.LastModified == "" {
		validators = feed.Validators()
	}

	if err := o.feedRepo.MarkRefreshSuccess(ctx, feed.ID, now, validators, stats.Added); err != nil {
		o.logger.ErrorContext(ctx, "failed to mark refresh success", "error", err, "feed_id", feed.ID)
	}

	if stats.Added > 0 {
		if err := o.historyRepo.Upsert(ctx, feed.ID, now, stats.Added); err != nil {
			o.logger.ErrorContext(ctx, "failed to upsert posting history", "error", err, "feed_id", feed.ID)
		}
	}

	return outcome
}

func (o *refreshOrchestrator) markFailure(ctx context.Context, feed *models.Feed, at time.Time) {
	if err := o.feedRepo.MarkRefreshFailure(ctx, feed.ID, at); err != nil {
		o.logger.ErrorContext(ctx, "failed to mark refresh failure", "error", err, "feed_id", feed.ID)
	}
}

// RefreshSingleFeed refreshes one feed outside any run, retrying the
// whole pipeline with exponential backoff up to maxRetries attempts.
func (o *refreshOrchestrator) RefreshSingleFeed(ctx context.Context, feedID string, maxRetries int) (*models.RefreshOutcome, error) {
	if maxRetries <= 0 {
		maxRetries = o.refreshCfg.SingleFeedMaxRetries
	}

	feed, err := o.feedRepo.GetFeedByID(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if !feed.IsActive {
		return nil, models.ErrFeedInactive
	}

	retrier := retry.NewRetrier(retry.Config{
		MaxAttempts:   maxRetries,
		BaseDelay:     o.retryCfg.BaseDelay,
		MaxDelay:      o.retryCfg.MaxDelay,
		BackoffFactor: o.retryCfg.BackoffFactor,
		JitterFactor:  o.retryCfg.JitterFactor,
	}, func(error) bool { return true }, o.logger)

	var outcome models.RefreshOutcome

	retryErr := retrier.Do(ctx, func() error {
		outcome = o.runPipeline(ctx, feed)
		return outcome.Err
	})

	// One terminal failure per exhausted attempt series.
	if outcome.Failed() {
		o.markFailure(ctx, feed, time.Now().UTC())
	}

	if retryErr != nil {
		o.logger.WarnContext(ctx, "single feed refresh failed",
			"feed_id", feedID,
			"max_retries", maxRetries,
			"error", retryErr)
	}

	return &outcome, nil
}

func partition(feeds []*models.Feed, batchSize int) [][]*models.Feed {
	if batchSize <= 0 || len(feeds) == 0 {
		return nil
	}

	batches := make([][]*models.Feed, 0, (len(feeds)+batchSize-1)/batchSize)
	for start := 0; start < len(feeds); start += batchSize {
		end := start + batchSize
		if end > len(feeds) {
			end = len(feeds)
		}
		batches = append(batches, feeds[start:end])
	}

	return batches
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}

	return parsed.Hostname()
}
