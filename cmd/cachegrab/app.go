package main

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/autosearch"
	"github.com/cachegrab/cachegrab/internal/availability"
	"github.com/cachegrab/cachegrab/internal/catalog"
	"github.com/cachegrab/cachegrab/internal/catalog/trakt"
	"github.com/cachegrab/cachegrab/internal/config"
	"github.com/cachegrab/cachegrab/internal/database"
	"github.com/cachegrab/cachegrab/internal/debrid/realdebrid"
	"github.com/cachegrab/cachegrab/internal/grab"
	"github.com/cachegrab/cachegrab/internal/health"
	"github.com/cachegrab/cachegrab/internal/history"
	"github.com/cachegrab/cachegrab/internal/indexer/torrentio"
	"github.com/cachegrab/cachegrab/internal/logger"
	"github.com/cachegrab/cachegrab/internal/retry"
)

// app holds the wired pipeline for one process.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	recent  *logger.Recent
	lock    *flock.Flock
	db      *database.DB
	history *history.Service
	health  *health.Service
	runner  *autosearch.Service
}

// newApp takes the process lock, opens the history database and wires the
// pipeline collaborators. The caller must call close.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	recent := logger.NewRecent(0)
	log := logger.New(cfg.Logging, recent)

	a := &app{cfg: cfg, log: log, recent: recent}

	a.lock = flock.New(cfg.Database.LockPath())
	if err := ensureDir(cfg.Database.LockPath()); err != nil {
		a.close()
		return nil, err
	}
	ok, err := a.lock.TryLock()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		a.close()
		return nil, fmt.Errorf("another cachegrab process holds %s", cfg.Database.LockPath())
	}

	a.db, err = database.Open(ctx, cfg.Database.Path)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.history = history.NewService(a.db.Conn(), log.Logger)

	a.runner = buildRunner(cfg, log.Logger)
	a.runner.SetRecorder(a.history)

	a.health = health.NewService(log.Logger)
	a.health.RegisterItem(autosearch.ComponentCatalog, "Trakt")
	a.health.RegisterItem(autosearch.ComponentIndex, "Torrentio")
	a.health.RegisterItem(autosearch.ComponentCache, "Real-Debrid")
	a.runner.SetHealthReporter(a.health)
	return a, nil
}

// buildRunner wires catalog, index, prober and grabber into the orchestrator.
func buildRunner(cfg *config.Config, log zerolog.Logger) *autosearch.Service {
	traktClient := trakt.NewClient(cfg.Trakt, log)
	titles := catalog.NewService(traktClient, cfg.ContentSources, log)

	index := torrentio.NewClient(cfg.Torrentio, log)
	rd := realdebrid.NewClient(cfg.RealDebrid, log)

	proberCfg := availability.DefaultConfig()
	proberCfg.BatchDelay = cfg.Delays.ProbeBatch
	prober := availability.NewProber(rd, proberCfg, log)

	grabber := grab.NewService(rd, retry.DefaultConfig(), log)

	return autosearch.NewService(titles, index, prober, rd, grabber, autosearch.SettingsFromConfig(cfg), log)
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}
