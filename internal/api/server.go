// Package api serves the daemon's status and control endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/cachegrab/cachegrab/internal/api/middleware"
	"github.com/cachegrab/cachegrab/internal/autosearch"
	"github.com/cachegrab/cachegrab/internal/config"
	"github.com/cachegrab/cachegrab/internal/health"
	"github.com/cachegrab/cachegrab/internal/history"
	"github.com/cachegrab/cachegrab/internal/logger"
	"github.com/cachegrab/cachegrab/internal/scheduler"
)

// Runner is the part of the orchestrator the API drives.
type Runner interface {
	RunWith(ctx context.Context, trigger autosearch.Trigger, dryRun bool) (*autosearch.RunSummary, error)
	IsRunning() bool
	LastRun() *autosearch.RunSummary
	Settings() autosearch.Settings
}

// Deps are the services exposed over HTTP. Nil services leave their routes
// unregistered.
type Deps struct {
	Config    *config.Config
	Runner    Runner
	History   *history.Service
	Health    *health.Service
	Scheduler *scheduler.Scheduler
	Logs      *logger.Recent
	LogPath   string
	Version   string
}

// Server handles HTTP requests for the cachegrab API.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	logger  zerolog.Logger
	started time.Time

	// runCtx parents runs started over HTTP so Shutdown can cancel them.
	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      *RunHandlers
}

// NewServer creates a new API server instance.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:      e,
		deps:      deps,
		logger:    logger.With().Str("component", "api").Logger(),
		started:   time.Now(),
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	if s.deps.Health != nil {
		health.NewHandlers(s.deps.Health).RegisterRoutes(api.Group("/health"))
	} else {
		api.GET("/health", s.healthCheck)
	}
	api.GET("/status", s.getStatus)

	if s.deps.Config != nil {
		api.GET("/settings", s.getSettings)
	}

	runs := api.Group("/runs")
	if s.deps.Runner != nil {
		s.runs = NewRunHandlers(s.runCtx, s.deps.Runner, s.logger)
		s.runs.RegisterRoutes(runs)
	}
	if s.deps.History != nil {
		history.NewHandlers(s.deps.History).RegisterRoutes(runs)
	}

	if s.deps.Scheduler != nil {
		scheduler.NewHandlers(s.deps.Scheduler).RegisterRoutes(api.Group("/scheduler/tasks"))
	}

	if s.deps.Logs != nil {
		NewLogsHandlers(s.deps.Logs, s.deps.LogPath).RegisterRoutes(api.Group("/logs"))
	}
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting API server")
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cancels runs started over HTTP, stops the server and waits for
// those runs to return so callers can release the database afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelRun()
	err := s.echo.Shutdown(ctx)
	if s.runs != nil {
		if werr := s.runs.Wait(ctx); werr != nil {
			s.logger.Warn().Err(werr).Msg("Timed out waiting for API-triggered run")
			err = errors.Join(err, werr)
		}
	}
	return err
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version   string                 `json:"version"`
	StartedAt time.Time              `json:"startedAt"`
	Uptime    string                 `json:"uptime"`
	Running   bool                   `json:"running"`
	DryRun    bool                   `json:"dryRun"`
	Enabled   bool                   `json:"enabled"`
	LastRun   *autosearch.RunSummary `json:"lastRun,omitempty"`
}

func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		Version:   s.deps.Version,
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.deps.Runner != nil {
		settings := s.deps.Runner.Settings()
		resp.Running = s.deps.Runner.IsRunning()
		resp.DryRun = settings.DryRun
		resp.Enabled = settings.Enabled
		resp.LastRun = s.deps.Runner.LastRun()
	}
	return c.JSON(http.StatusOK, resp)
}

// getSettings returns the effective configuration with credentials masked.
func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Config.Redacted())
}
