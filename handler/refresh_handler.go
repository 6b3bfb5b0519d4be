package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"feed-refresher/metrics"
	"feed-refresher/models"
	"feed-refresher/orchestrator"
	"feed-refresher/scorer"

	"github.com/labstack/echo/v4"
)

// StartRefreshRequest is the JSON body for POST /api/v1/refresh.
// All fields are optional; zero values fall back to defaults.
type StartRefreshRequest struct {
	FeedIDs               []string `json:"feed_ids,omitempty"`
	BatchSize             int      `json:"batch_size,omitempty"`
	InterBatchDelaySecs   *int     `json:"inter_batch_delay_seconds,omitempty"`
	RecalculatePriorities bool     `json:"recalculate_priorities,omitempty"`
}

// RefreshSingleFeedRequest is the JSON body for POST /api/v1/feeds/:id/refresh.
type RefreshSingleFeedRequest struct {
	MaxRetries int `json:"max_retries,omitempty"`
}

type refreshOutcomeResponse struct {
	FeedID        string `json:"feed_id"`
	Success       bool   `json:"success"`
	ArticlesAdded int    `json:"articles_added"`
	Duplicates    int    `json:"duplicates"`
	SkippedOld    int    `json:"skipped_old"`
	NotModified   bool   `json:"not_modified"`
	Error         string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RefreshHandler exposes the refresh operation surface over HTTP.
type RefreshHandler struct {
	orchestrator orchestrator.RefreshOrchestrator
	scorer       scorer.PriorityScorer
	collector    *metrics.Collector
	logger       *slog.Logger
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(
	o orchestrator.RefreshOrchestrator,
	priorityScorer scorer.PriorityScorer,
	collector *metrics.Collector,
	logger *slog.Logger,
) *RefreshHandler {
	return &RefreshHandler{
		orchestrator: o,
		scorer:       priorityScorer,
		collector:    collector,
		logger:       logger,
	}
}

// StartRefresh launches a refresh run and returns its initial status.
func (h *RefreshHandler) StartRefresh(c echo.Context) error {
	req := new(StartRefreshRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	opts := orchestrator.StartOptions{
		FeedIDs:               req.FeedIDs,
		BatchSize:             req.BatchSize,
		RecalculatePriorities: req.RecalculatePriorities,
	}
	if req.InterBatchDelaySecs != nil {
		delay := time.Duration(*req.InterBatchDelaySecs) * time.Second
		opts.InterBatchDelay = &delay
	}

	status, err := h.orchestrator.StartRefresh(c.Request().Context(), opts)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRunAlreadyActive):
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		case errors.Is(err, models.ErrNoFeeds):
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		default:
			h.logger.ErrorContext(c.Request().Context(), "failed to start refresh run", "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to start refresh run"})
		}
	}

	return c.JSON(http.StatusAccepted, status)
}

// GetRunStatus returns a progress snapshot for one run.
func (h *RefreshHandler) GetRunStatus(c echo.Context) error {
	status, err := h.orchestrator.RunStatus(c.Param("run_id"))
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to read run status"})
	}

	return c.JSON(http.StatusOK, status)
}

// CancelRun requests cooperative cancellation of a running run.
func (h *RefreshHandler) CancelRun(c echo.Context) error {
	runID := c.Param("run_id")

	if err := h.orchestrator.CancelRun(runID); err != nil {
		switch {
		case errors.Is(err, models.ErrRunNotFound):
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		case errors.Is(err, models.ErrRunNotCancellable):
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to cancel run"})
		}
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"run_id": runID,
		"result": "accepted",
	})
}

// RefreshSingleFeed forces one feed through the pipeline outside a run.
func (h *RefreshHandler) RefreshSingleFeed(c echo.Context) error {
	req := new(RefreshSingleFeedRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	outcome, err := h.orchestrator.RefreshSingleFeed(c.Request().Context(), c.Param("id"), req.MaxRetries)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrFeedNotFound):
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		case errors.Is(err, models.ErrFeedInactive):
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			h.logger.ErrorContext(c.Request().Context(), "failed to refresh feed", "error", err, "feed_id", c.Param("id"))
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to refresh feed"})
		}
	}

	resp := refreshOutcomeResponse{
		FeedID:        outcome.FeedID,
		Success:       !outcome.Failed(),
		ArticlesAdded: outcome.ArticlesAdded,
		Duplicates:    outcome.Duplicates,
		SkippedOld:    outcome.SkippedOld,
		NotModified:   outcome.NotModified,
	}
	if outcome.Failed() {
		resp.Error = outcome.Err.Error()
	}

	return c.JSON(http.StatusOK, resp)
}

// GetPriorityStats returns the score distribution across all feeds.
func (h *RefreshHandler) GetPriorityStats(c echo.Context) error {
	stats, err := h.scorer.Stats(c.Request().Context())
	if err != nil {
		h.logger.ErrorContext(c.Request().Context(), "failed to read priority stats", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to read priority stats"})
	}

	return c.JSON(http.StatusOK, stats)
}

// GetMetrics returns the in-process metrics snapshot.
func (h *RefreshHandler) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.collector.Snapshot())
}
