package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"feed-refresher/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryHandle(runID string, state models.RunState) *runHandle {
	return newRunHandle(&models.RefreshRun{
		ID:        runID,
		State:     state,
		StartedAt: time.Now().UTC(),
		Errors:    make(map[string]*models.FeedError),
	})
}

func TestRunRegistry_Retention(t *testing.T) {
	t.Run("should evict the oldest finished runs beyond the retention count", func(t *testing.T) {
		registry := NewRunRegistry()

		for i := 0; i < terminalRunRetention+5; i++ {
			registry.register(registryHandle(fmt.Sprintf("run-%03d", i), models.RunStateCompleted))
		}

		for i := 0; i < 5; i++ {
			_, err := registry.Status(fmt.Sprintf("run-%03d", i))
			assert.ErrorIs(t, err, models.ErrRunNotFound, "run-%03d should be evicted", i)
		}

		status, err := registry.Status(fmt.Sprintf("run-%03d", terminalRunRetention+4))
		require.NoError(t, err)
		assert.Equal(t, models.RunStateCompleted, status.State)

		assert.Len(t, registry.runs, terminalRunRetention)
	})

	t.Run("should never evict a running run", func(t *testing.T) {
		registry := NewRunRegistry()

		registry.register(registryHandle("run-active", models.RunStateRunning))
		for i := 0; i < terminalRunRetention+10; i++ {
			registry.register(registryHandle(fmt.Sprintf("run-%03d", i), models.RunStateCompleted))
		}

		status, err := registry.Status("run-active")
		require.NoError(t, err)
		assert.True(t, status.Active)
		assert.True(t, registry.HasActiveRun())
	})

	t.Run("should keep every run below the retention count", func(t *testing.T) {
		registry := NewRunRegistry()

		for i := 0; i < 10; i++ {
			registry.register(registryHandle(fmt.Sprintf("run-%03d", i), models.RunStateCompleted))
		}

		for i := 0; i < 10; i++ {
			_, err := registry.Status(fmt.Sprintf("run-%03d", i))
			assert.NoError(t, err)
		}
	})
}
