package metrics

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
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

func TestCollector_RecordFetch(t *testing.T) {
	t.Run("should accumulate per-host fetch statistics", func(t *testing.T) {
		collector := NewCollector(testLogger())

		collector.RecordFetch("blog.example.com", 100*time.Millisecond, true, false)
		collector.RecordFetch("blog.example.com", 200*time.Millisecond, true, true)
		collector.RecordFetch("blog.example.com", 500*time.Millisecond, false, false)

		host := collector.HostSnapshot("blog.example.com")
		require.NotNil(t, host)

		assert.Equal(t, int64(3), host.Fetches)
		assert.Equal(t, int64(2), host.Successes)
		assert.Equal(t, int64(1), host.Failures)
		assert.Equal(t, int64(1), host.NotModified)
		assert.InDelta(t, 0.67, host.SuccessRate, 0.01)
		assert.Equal(t, 100.0, host.MinFetchTimeMs)
		assert.Equal(t, 500.0, host.MaxFetchTimeMs)
		assert.InDelta(t, 266.7, host.AvgFetchTimeMs, 0.1)
	})

	t.Run("should report fetch times in milliseconds when marshalled", func(t *testing.T) {
		collector := NewCollector(testLogger())

		collector.RecordFetch("blog.example.com", 1500*time.Millisecond, true, false)

		payload, err := json.Marshal(collector.HostSnapshot("blog.example.com"))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, 1500.0, decoded["avg_fetch_time_ms"])
		assert.Equal(t, 1500.0, decoded["min_fetch_time_ms"])
		assert.Equal(t, 1500.0, decoded["max_fetch_time_ms"])
	})

	t.Run("should track hosts separately", func(t *testing.T) {
		collector := NewCollector(testLogger())

		collector.RecordFetch("a.example.com", 100*time.Millisecond, true, false)
		collector.RecordFetch("b.example.com", 200*time.Millisecond, false, false)

		a := collector.HostSnapshot("a.example.com")
		b := collector.HostSnapshot("b.example.com")

		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, float64(1.0), a.SuccessRate)
		assert.Equal(t, float64(0.0), b.SuccessRate)
	})

	t.Run("should return nil for unknown hosts", func(t *testing.T) {
		collector := NewCollector(testLogger())

		assert.Nil(t, collector.HostSnapshot("never-fetched.example.com"))
	})
}

func TestCollector_RunTotals(t *testing.T) {
	t.Run("should aggregate refresh outcomes", func(t *testing.T) {
		collector := NewCollector(testLogger())

		collector.RecordFeedRefresh(true, 5, false)
		collector.RecordFeedRefresh(true, 0, true)
		collector.RecordFeedRefresh(false, 0, false)
		collector.RecordRunCompleted()
		collector.RecordRunCancelled()

		snapshot := collector.Snapshot()

		assert.Equal(t, int64(2), snapshot.Totals.FeedsRefreshed)
		assert.Equal(t, int64(1), snapshot.Totals.FeedsFailed)
		assert.Equal(t, int64(5), snapshot.Totals.ArticlesAdded)
		assert.Equal(t, int64(1), snapshot.Totals.NotModified)
		assert.Equal(t, int64(1), snapshot.Totals.RunsCompleted)
		assert.Equal(t, int64(1), snapshot.Totals.RunsCancelled)
	})

	t.Run("should return an isolated snapshot copy", func(t *testing.T) {
		collector := NewCollector(testLogger())

		collector.RecordFetch("a.example.com", time.Millisecond, true, false)
		snapshot := collector.Snapshot()

		snapshot.Hosts["a.example.com"].Fetches = 999
		snapshot.Totals.FeedsRefreshed = 999

		fresh := collector.Snapshot()
		assert.Equal(t, int64(1), fresh.Hosts["a.example.com"].Fetches)
		assert.Equal(t, int64(0), fresh.Totals.FeedsRefreshed)
	})
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	t.Run("should handle concurrent recording", func(t *testing.T) {
		collector := NewCollector(testLogger())

		var wg sync.WaitGroup
		concurrency := 100

		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				collector.RecordFetch("concurrent.example.com", time.Duration(index)*time.Millisecond, index%2 == 0, false)
				collector.RecordFeedRefresh(index%2 == 0, 1, false)
			}(i)
		}

		wg.Wait()

		host := collector.HostSnapshot("concurrent.example.com")
		require.NotNil(t, host)
		assert.Equal(t, int64(concurrency), host.Fetches)
		assert.Equal(t, int64(50), host.Successes)

		snapshot := collector.Snapshot()
		assert.Equal(t, int64(50), snapshot.Totals.FeedsRefreshed)
		assert.Equal(t, int64(50), snapshot.Totals.FeedsFailed)
		assert.Equal(t, int64(concurrency), snapshot.Totals.ArticlesAdded)
	})
}

func TestCollector_Reset(t *testing.T) {
	t.Run("should clear all collected metrics", func(t *testing.T) {
		collector := NewCollector(testLogger())

		collector.RecordFetch("a.example.com", time.Millisecond, true, false)
		collector.RecordRunCompleted()

		collector.Reset()

		assert.Nil(t, collector.HostSnapshot("a.example.com"))
		snapshot := collector.Snapshot()
		assert.Equal(t, int64(0), snapshot.Totals.RunsCompleted)
		assert.Empty(t, snapshot.Hosts)
	})
}
