package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"feed-refresher/models"
	"feed-refresher/repository"
)

// Signal weights. They sum to 1 so the combined score stays in [0,1]
// without rescaling.
const (
	weightUnread       = 0.4
	weightEngagement   = 0.3
	weightFrequency    = 0.2
	weightReadFraction = 0.1
)

const (
	// unreadSaturation is the unread count at which the unread signal
	// reaches 1.0 on the log curve.
	unreadSaturation = 50

	engagementWindowDays   = 30
	readFractionWindowDays = 60

	// historyWindowDays bounds the posting-history lookback for cadence
	// estimation; historyCacheThreshold is the distinct-day count after
	// which the derived cadence is cached back onto the feed.
	historyWindowDays     = 14
	historyCacheThreshold = 7
)

// PriorityScorer computes and persists refresh priority scores.
type PriorityScorer interface {
	ScoreFeed(ctx context.Context, feed *models.Feed) (float64, error)
	ScoreAll(ctx context.Context, feeds []*models.Feed) (int, error)
	Stats(ctx context.Context) (*models.PriorityStats, error)
}

type priorityScorer struct {
	feedRepo    repository.FeedRepository
	readStatus  repository.ReadStatusRepository
	postingRepo repository.PostingHistoryRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewPriorityScorer creates a new priority scorer.
func NewPriorityScorer(
	feedRepo repository.FeedRepository,
	readStatus repository.ReadStatusRepository,
	postingRepo repository.PostingHistoryRepository,
	logger *slog.Logger,
) PriorityScorer {
	return &priorityScorer{
		feedRepo:    feedRepo,
		readStatus:  readStatus,
		postingRepo: postingRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// feedSignals holds the four raw signal values for one feed.
type feedSignals struct {
	unread       float64
	engagement   float64
	frequency    float64
	readFraction float64
	// rawEngagement is the 30-day engagement persisted onto the feed
	// alongside the score.
	rawEngagement float64
}

// ScoreFeed computes the feed's priority score, persists it, and updates
// the in-memory feed. Inactive feeds short-circuit to 0.
func (s *priorityScorer) ScoreFeed(ctx context.Context, feed *models.Feed) (float64, error) {
	if feed == nil {
		return 0, fmt.Errorf("feed cannot be nil")
	}

	if !feed.IsActive {
		if err := s.persist(ctx, feed, 0, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}

	signals, err := s.collectSignals(ctx, feed)
	if err != nil {
		return 0, err
	}

	score := clamp01(weightUnread*signals.unread +
		weightEngagement*signals.engagement +
		weightFrequency*signals.frequency +
		weightReadFraction*signals.readFraction)

	if err := s.persist(ctx, feed, score, signals.rawEngagement); err != nil {
		return 0, err
	}

	s.logger.DebugContext(ctx, "feed scored",
		"feed_id", feed.ID,
		"score", score,
		"unread", signals.unread,
		"engagement", signals.engagement,
		"frequency", signals.frequency,
		"read_fraction", signals.readFraction)

	return score, nil
}

// ScoreAll scores every feed in one pass. A feed that fails to score is
// logged and skipped, never aborting the pass. Returns the number of
// feeds scored.
func (s *priorityScorer) ScoreAll(ctx context.Context, feeds []*models.Feed) (int, error) {
	scored := 0

	// Each feed's signal lookups run exactly once per pass.
	cache := make(map[string]float64, len(feeds))

	for _, feed := range feeds {
		if feed == nil {
			continue
		}

		if score, ok := cache[feed.ID]; ok {
			feed.PriorityScore = score
			continue
		}

		score, err := s.ScoreFeed(ctx, feed)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to score feed", "error", err, "feed_id", feed.ID)
			continue
		}

		cache[feed.ID] = score
		scored++
	}

	s.logger.InfoContext(ctx, "priority scoring pass finished", "feeds", len(feeds), "scored", scored)

	return scored, nil
}

// Stats returns the score distribution across all feeds.
func (s *priorityScorer) Stats(ctx context.Context) (*models.PriorityStats, error) {
	return s.feedRepo.GetPriorityStats(ctx)
}

func (s *priorityScorer) collectSignals(ctx context.Context, feed *models.Feed) (*feedSignals, error) {
	now := s.now().UTC()
	signals := &feedSignals{}

	unreadCount, err := s.readStatus.CountUnread(ctx, feed.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect unread signal: %w", err)
	}
	signals.unread = unreadScore(unreadCount)

	engagement, err := s.readStatus.EngagementWindow(ctx, feed.ID, now.AddDate(0, 0, -engagementWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to collect engagement signal: %w", err)
	}
	signals.engagement = engagementScore(engagement)
	signals.rawEngagement = signals.engagement

	frequency, err := s.frequencyScore(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("failed to collect frequency signal: %w", err)
	}
	signals.frequency = frequency

	readWindow, err := s.readStatus.EngagementWindow(ctx, feed.ID, now.AddDate(0, 0, -readFractionWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to collect read fraction signal: %w", err)
	}
	signals.readFraction = readFractionScore(readWindow)

	return signals, nil
}

// unreadScore grows logarithmically and saturates at unreadSaturation
// articles, so a huge backlog cannot dominate the other signals.
func unreadScore(count int) float64 {
	if count <= 0 {
		return 0
	}

	score := math.Log(1+float64(count)) / math.Log(1+unreadSaturation)

	return math.Min(score, 1)
}

func engagementScore(window *models.EngagementWindow) float64 {
	if window == nil || window.Total == 0 {
		return 0
	}

	readRate := float64(window.Read) / float64(window.Total)
	starRate := float64(window.Starred) / float64(window.Total)

	return 0.7*readRate + 0.3*starRate
}

// frequencyScore prefers the cached cadence; without one it derives the
// posting rate from recent history and caches the cadence back onto the
// feed once enough distinct days exist.
func (s *priorityScorer) frequencyScore(ctx context.Context, feed *models.Feed) (float64, error) {
	if feed.PostingFrequencyDays > 0 {
		return clamp01(2 / feed.PostingFrequencyDays), nil
	}

	entries, err := s.postingRepo.GetRecent(ctx, feed.ID, historyWindowDays)
	if err != nil {
		return 0, err
	}

	if len(entries) == 0 {
		return 0, nil
	}

	totalArticles := 0
	for _, entry := range entries {
		totalArticles += entry.ArticlesCount
	}

	rate := float64(totalArticles) / historyWindowDays

	if len(entries) >= historyCacheThreshold && rate > 0 {
		cadenceDays := 1 / rate
		if err := s.feedRepo.UpdatePostingFrequency(ctx, feed.ID, cadenceDays); err != nil {
			// Cache misses are survivable; the score is still correct.
			s.logger.WarnContext(ctx, "failed to cache posting frequency", "error", err, "feed_id", feed.ID)
		} else {
			feed.PostingFrequencyDays = cadenceDays
		}
	}

	if rate >= 1 {
		return math.Min(1, rate/3), nil
	}

	return rate, nil
}

// readFractionScore rewards feeds whose recent articles are still
// unread. A feed with no recent articles scores the full fraction.
func readFractionScore(window *models.EngagementWindow) float64 {
	if window == nil || window.Total == 0 {
		return 1
	}

	return 1 - float64(window.Read)/float64(window.Total)
}

func (s *priorityScorer) persist(ctx context.Context, feed *models.Feed, score, engagement float64) error {
	if err := s.feedRepo.UpdatePriorityScore(ctx, feed.ID, score, engagement); err != nil {
		return fmt.Errorf("failed to persist priority score: %w", err)
	}

	feed.PriorityScore = score
	feed.UserEngagementScore = engagement

	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
