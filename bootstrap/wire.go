package bootstrap

import (
	"context"
	"log/slog"

	"feed-refresher/config"
	"feed-refresher/fetcher"
	"feed-refresher/handler"
	"feed-refresher/ingest"
	"feed-refresher/metrics"
	"feed-refresher/orchestrator"
	"feed-refresher/parser"
	"feed-refresher/ratelimit"
	"feed-refresher/repository"
	"feed-refresher/scorer"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config         *config.Config
	DBPool         *pgxpool.Pool
	Orchestrator   orchestrator.RefreshOrchestrator
	Scheduler      *orchestrator.Scheduler
	RefreshHandler *handler.RefreshHandler
	HealthHandler  *handler.HealthHandler
	Collector      *metrics.Collector
	Logger         *slog.Logger
}

// BuildDependencies constructs all application dependencies.
// Returns a cleanup function that should be deferred.
func BuildDependencies(ctx context.Context, log *slog.Logger) (*Dependencies, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	dbPool, err := repository.Init(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}

	// Repositories
	feedRepo := repository.NewFeedRepository(dbPool, log)
	articleRepo := repository.NewArticleRepository(dbPool, log)
	historyRepo := repository.NewPostingHistoryRepository(dbPool, log)
	readStatusRepo := repository.NewReadStatusRepository(dbPool, log)
	metricsRepo := repository.NewRefreshMetricsRepository(dbPool, log)

	// Pipeline components
	rateLimiter := ratelimit.NewHostRateLimiter(cfg.RateLimit.HostInterval)
	feedFetcher := fetcher.NewFeedFetcher(cfg.HTTP, cfg.Retry, rateLimiter, log)
	feedParser := parser.NewFeedParser(log)
	ingester := ingest.NewArticleIngester(articleRepo, log)
	priorityScorer := scorer.NewPriorityScorer(feedRepo, readStatusRepo, historyRepo, log)
	collector := metrics.NewCollector(log)

	refreshOrchestrator := orchestrator.NewRefreshOrchestrator(
		feedRepo, historyRepo, metricsRepo,
		feedFetcher, feedParser, ingester, priorityScorer,
		collector, cfg.Refresh, cfg.Retry, log)

	var scheduler *orchestrator.Scheduler
	if cfg.Refresh.AutoRefreshEnabled {
		scheduler = orchestrator.NewScheduler(orchestrator.SchedulerConfig{
			Interval: cfg.Refresh.AutoRefreshInterval,
		}, refreshOrchestrator, log)
	}

	cleanup := func() {
		dbPool.Close()
	}

	return &Dependencies{
		Config:         cfg,
		DBPool:         dbPool,
		Orchestrator:   refreshOrchestrator,
		Scheduler:      scheduler,
		RefreshHandler: handler.NewRefreshHandler(refreshOrchestrator, priorityScorer, collector, log),
		HealthHandler:  handler.NewHealthHandler(dbPool, log),
		Collector:      collector,
		Logger:         log,
	}, cleanup, nil
}
