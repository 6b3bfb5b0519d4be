package models

import (
	"time"
)

// RunState is the lifecycle state of a refresh run.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
)

// FeedError records the failure history of one feed within a run.
type FeedError struct {
	Count     int    `json:"count"`
	LastError string `json:"last_error"`
}

// RefreshRun is the mutable state of one priority-ordered refresh pass.
// The orchestrator guards mutation; readers get copies via RunStatus.
type RefreshRun struct {
	ID          string
	State       RunState
	TotalFeeds  int
	Completed   int
	Successful  int
	Failed      int
	BatchSize   int
	StartedAt   time.Time
	CompletedAt *time.Time
	Errors      map[string]*FeedError
}

// RunStatus is a point-in-time snapshot of a run, safe to hand out.
type RunStatus struct {
	RunID      string                `json:"run_id"`
	State      RunState              `json:"state"`
	Total      int                   `json:"total"`
	Completed  int                   `json:"completed"`
	Successful int                   `json:"successful"`
	Failed     int                   `json:"failed"`
	Active     bool                  `json:"active"`
	Cancelled  bool                  `json:"cancelled"`
	Errors     map[string]*FeedError `json:"errors,omitempty"`
}

// RefreshOutcome is the tagged per-feed result of one refresh attempt.
// Err non-nil marks the attempt as failed; the remaining fields are only
// meaningful on success.
type RefreshOutcome struct {
	FeedID        string
	ArticlesAdded int
	Duplicates    int
	SkippedOld    int
	NotModified   bool
	Err           error
}

// Failed reports whether the refresh terminally failed.
func (o RefreshOutcome) Failed() bool {
	return o.Err != nil
}

// RunSummary is the persisted metrics row written when a run reaches a
// terminal state.
type RunSummary struct {
	RunID            string
	State            RunState
	FeedsProcessed   int
	FeedsSuccessful  int
	FeedsFailed      int
	BatchSize        int
	Duration         time.Duration
	AlgorithmVersion string
	StartedAt        time.Time
	CompletedAt      time.Time
}
