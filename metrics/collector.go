package metrics

import (
	"log/slog"
	"sync"
	"time"
)

// HostMetrics tracks fetch outcomes against one upstream host. Fetch
// times are reported in milliseconds.
type HostMetrics struct {
	Host           string    `json:"host"`
	Fetches        int64     `json:"fetches"`
	Successes      int64     `json:"successes"`
	Failures       int64     `json:"failures"`
	NotModified    int64     `json:"not_modified"`
	SuccessRate    float64   `json:"success_rate"`
	AvgFetchTimeMs float64   `json:"avg_fetch_time_ms"`
	MinFetchTimeMs float64   `json:"min_fetch_time_ms"`
	MaxFetchTimeMs float64   `json:"max_fetch_time_ms"`
	LastFetchTime  time.Time `json:"last_fetch_time"`

	totalFetchTime time.Duration
	minFetchTime   time.Duration
	maxFetchTime   time.Duration
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RunTotals aggregates refresh outcomes across all runs since start
// or the last reset.
type RunTotals struct {
	FeedsRefreshed int64 `json:"feeds_refreshed"`
	FeedsFailed    int64 `json:"feeds_failed"`
	ArticlesAdded  int64 `json:"articles_added"`
	NotModified    int64 `json:"not_modified"`
	RunsCompleted  int64 `json:"runs_completed"`
	RunsCancelled  int64 `json:"runs_cancelled"`
}

// Snapshot is a point-in-time copy of all collected metrics.
type Snapshot struct {
	Totals         RunTotals               `json:"totals"`
	Hosts          map[string]*HostMetrics `json:"hosts"`
	CollectionTime time.Time               `json:"collection_time"`
}

// Collector accumulates in-process refresh metrics. All methods are
// safe for concurrent use by in-flight feed refreshes.
type Collector struct {
	logger *slog.Logger

	mu     sync.RWMutex
	hosts  map[string]*HostMetrics
	totals RunTotals
}

// NewCollector creates a new metrics collector.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
		hosts:  make(map[string]*HostMetrics),
	}
}

// RecordFetch records one terminal fetch outcome against a host.
func (c *Collector) RecordFetch(host string, fetchTime time.Duration, success, notModified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hostMetrics, exists := c.hosts[host]
	if !exists {
		hostMetrics = &HostMetrics{
			Host:         host,
			minFetchTime: fetchTime,
			maxFetchTime: fetchTime,
		}
		c.hosts[host] = hostMetrics
	}

	hostMetrics.Fetches++
	hostMetrics.LastFetchTime = time.Now()
	hostMetrics.totalFetchTime += fetchTime

	if success {
		hostMetrics.Successes++
	} else {
		hostMetrics.Failures++
	}
	if notModified {
		hostMetrics.NotModified++
	}

	if fetchTime < hostMetrics.minFetchTime {
		hostMetrics.minFetchTime = fetchTime
	}
	if fetchTime > hostMetrics.maxFetchTime {
		hostMetrics.maxFetchTime = fetchTime
	}

	hostMetrics.SuccessRate = float64(hostMetrics.Successes) / float64(hostMetrics.Fetches)
	hostMetrics.AvgFetchTimeMs = durationMs(hostMetrics.totalFetchTime) / float64(hostMetrics.Fetches)
	hostMetrics.MinFetchTimeMs = durationMs(hostMetrics.minFetchTime)
	hostMetrics.MaxFetchTimeMs = durationMs(hostMetrics.maxFetchTime)
}

// RecordFeedRefresh records one terminal per-feed refresh outcome.
func (c *Collector) RecordFeedRefresh(success bool, articlesAdded int, notModified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if success {
		c.totals.FeedsRefreshed++
	} else {
		c.totals.FeedsFailed++
	}

	c.totals.ArticlesAdded += int64(articlesAdded)

	if notModified {
		c.totals.NotModified++
	}
}

// RecordRunCompleted counts one run reaching its terminal completed state.
func (c *Collector) RecordRunCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totals.RunsCompleted++
}

// RecordRunCancelled counts one run cancelled before exhausting its batches.
func (c *Collector) RecordRunCancelled() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totals.RunsCancelled++
}

// HostSnapshot returns a copy of one host's metrics, or nil when the
// host has never been fetched.
func (c *Collector) HostSnapshot(host string) *HostMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hostMetrics, exists := c.hosts[host]
	if !exists {
		return nil
	}

	snapshot := *hostMetrics

	return &snapshot
}

// Snapshot returns a copy of everything collected so far.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := &Snapshot{
		Totals:         c.totals,
		Hosts:          make(map[string]*HostMetrics, len(c.hosts)),
		CollectionTime: time.Now(),
	}

	for host, hostMetrics := range c.hosts {
		hostCopy := *hostMetrics
		snapshot.Hosts[host] = &hostCopy
	}

	return snapshot
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hosts = make(map[string]*HostMetrics)
	c.totals = RunTotals{}

	c.logger.Info("metrics reset completed")
}
