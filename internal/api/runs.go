package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/autosearch"
)

// RunHandlers starts runs on demand.
type RunHandlers struct {
	ctx    context.Context
	runner Runner
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewRunHandlers creates run handlers. Runs started over HTTP are bound to
// ctx rather than to the request.
func NewRunHandlers(ctx context.Context, runner Runner, logger zerolog.Logger) *RunHandlers {
	return &RunHandlers{ctx: ctx, runner: runner, logger: logger}
}

// RegisterRoutes registers run routes on an Echo group.
func (h *RunHandlers) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Trigger)
	g.GET("/current", h.Current)
}

// TriggerRequest optionally overrides the configured dry-run setting.
type TriggerRequest struct {
	DryRun *bool `json:"dryRun,omitempty"`
}

// Trigger starts a run in the background.
// POST /api/v1/runs
func (h *RunHandlers) Trigger(c echo.Context) error {
	var req TriggerRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	if h.runner.IsRunning() {
		return echo.NewHTTPError(http.StatusConflict, autosearch.ErrRunInProgress.Error())
	}

	dryRun := h.runner.Settings().DryRun
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_, err := h.runner.RunWith(h.ctx, autosearch.TriggerAPI, dryRun)
		switch {
		case errors.Is(err, autosearch.ErrRunInProgress):
			h.logger.Info().Msg("Run already in progress, API trigger ignored")
		case err != nil:
			h.logger.Error().Err(err).Msg("API-triggered run failed")
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Run started",
		"dryRun":  dryRun,
	})
}

// Wait blocks until every run started over HTTP has returned or ctx is done.
func (h *RunHandlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current reports whether a run is active and the last finished run.
// GET /api/v1/runs/current
func (h *RunHandlers) Current(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"running": h.runner.IsRunning(),
		"lastRun": h.runner.LastRun(),
	})
}
