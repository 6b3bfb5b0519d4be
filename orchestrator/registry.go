package orchestrator

import (
	"sync"
	"time"

	"feed-refresher/models"
)

// runHandle pairs a run's mutable state with its cancellation signal.
// The orchestrator's executor goroutine and status readers share it.
type runHandle struct {
	mu        sync.Mutex
	run       *models.RefreshRun
	cancelCh  chan struct{}
	cancelled bool
}

func newRunHandle(run *models.RefreshRun) *runHandle {
	return &runHandle{
		run:      run,
		cancelCh: make(chan struct{}),
	}
}

// requestCancel closes the cancellation channel exactly once. Returns
// false when the run is no longer cancellable.
func (h *runHandle) requestCancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.run.State != models.RunStateRunning {
		return false
	}
	if !h.cancelled {
		h.cancelled = true
		close(h.cancelCh)
	}

	return true
}

// cancelRequested is the signal the executor selects on at its two
// suspension points. In-flight refreshes are never aborted through it.
func (h *runHandle) cancelRequested() <-chan struct{} {
	return h.cancelCh
}

func (h *runHandle) isActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.run.State == models.RunStateRunning
}

func (h *runHandle) recordOutcome(outcome models.RefreshOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.run.Completed++

	if outcome.Failed() {
		h.run.Failed++

		feedErr, exists := h.run.Errors[outcome.FeedID]
		if !exists {
			feedErr = &models.FeedError{}
			h.run.Errors[outcome.FeedID] = feedErr
		}
		feedErr.Count++
		feedErr.LastError = outcome.Err.Error()

		return
	}

	h.run.Successful++
}

func (h *runHandle) finish(state models.RunState, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.run.State = state
	h.run.CompletedAt = &at
}

// status returns a deep-copied snapshot safe to hand out.
func (h *runHandle) status() *models.RunStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	errs := make(map[string]*models.FeedError, len(h.run.Errors))
	for feedID, feedErr := range h.run.Errors {
		errCopy := *feedErr
		errs[feedID] = &errCopy
	}

	return &models.RunStatus{
		RunID:      h.run.ID,
		State:      h.run.State,
		Total:      h.run.TotalFeeds,
		Completed:  h.run.Completed,
		Successful: h.run.Successful,
		Failed:     h.run.Failed,
		Active:     h.run.State == models.RunStateRunning,
		Cancelled:  h.run.State == models.RunStateCancelled,
		Errors:     errs,
	}
}

func (h *runHandle) summary(algorithmVersion string) *models.RunSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	completedAt := time.Now().UTC()
	if h.run.CompletedAt != nil {
		completedAt = *h.run.CompletedAt
	}

	return &models.RunSummary{
		RunID:            h.run.ID,
		State:            h.run.State,
		FeedsProcessed:   h.run.Completed,
		FeedsSuccessful:  h.run.Successful,
		FeedsFailed:      h.run.Failed,
		BatchSize:        h.run.BatchSize,
		Duration:         completedAt.Sub(h.run.StartedAt),
		AlgorithmVersion: algorithmVersion,
		StartedAt:        h.run.StartedAt,
		CompletedAt:      completedAt,
	}
}

// terminalRunRetention bounds how many finished runs stay queryable.
// At the default 30-minute auto-refresh cadence this keeps roughly a
// day of history.
const terminalRunRetention = 50

// RunRegistry tracks refresh runs by id for the lifetime of the process.
// Replaces any ambient global state: each orchestrator owns one registry.
// Finished runs are evicted oldest-first once more than
// terminalRunRetention of them have accumulated; running runs are never
// evicted.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[string]*runHandle
	order []string
}

// NewRunRegistry creates an empty run registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{
		runs: make(map[string]*runHandle),
	}
}

func (r *RunRegistry) register(handle *runHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[handle.run.ID] = handle
	r.order = append(r.order, handle.run.ID)
	r.pruneLocked()
}

func (r *RunRegistry) pruneLocked() {
	terminal := 0
	for _, runID := range r.order {
		if !r.runs[runID].isActive() {
			terminal++
		}
	}

	if terminal <= terminalRunRetention {
		return
	}

	kept := r.order[:0]
	for _, runID := range r.order {
		if terminal > terminalRunRetention && !r.runs[runID].isActive() {
			delete(r.runs, runID)
			terminal--
			continue
		}
		kept = append(kept, runID)
	}
	r.order = kept
}

func (r *RunRegistry) get(runID string) (*runHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, exists := r.runs[runID]

	return handle, exists
}

// Status returns a snapshot of the run, or models.ErrRunNotFound.
func (r *RunRegistry) Status(runID string) (*models.RunStatus, error) {
	handle, exists := r.get(runID)
	if !exists {
		return nil, models.ErrRunNotFound
	}

	return handle.status(), nil
}

// Cancel requests cooperative cancellation of a running run.
// Unknown runs return models.ErrRunNotFound; finished runs return
// models.ErrRunNotCancellable.
func (r *RunRegistry) Cancel(runID string) error {
	handle, exists := r.get(runID)
	if !exists {
		return models.ErrRunNotFound
	}

	if !handle.requestCancel() {
		return models.ErrRunNotCancellable
	}

	return nil
}

// HasActiveRun reports whether any registered run is still running.
func (r *RunRegistry) HasActiveRun() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, handle := range r.runs {
		if handle.isActive() {
			return true
		}
	}

	return false
}
