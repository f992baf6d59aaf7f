package autosearch

import (
	"time"

	"github.com/cachegrab/cachegrab/internal/config"
	"github.com/cachegrab/cachegrab/internal/quality"
)

// Settings are the run-level options read once per run.
type Settings struct {
	Enabled             bool
	DryRun              bool
	UpgradeExisting     bool
	Preferences         quality.Preferences
	MaxTorrentsPerRun   int // zero or less means unlimited
	MaxTorrentsPerTitle int
	SearchDelay         time.Duration
	CommitDelay         time.Duration
}

// SettingsFromConfig extracts run settings from the application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Enabled:             cfg.Enabled,
		DryRun:              cfg.DryRun,
		UpgradeExisting:     cfg.UpgradeExisting,
		Preferences:         cfg.QualityPreferences,
		MaxTorrentsPerRun:   cfg.Limits.MaxTorrentsPerRun,
		MaxTorrentsPerTitle: cfg.Limits.MaxTorrentsPerTitle,
		SearchDelay:         cfg.Delays.Search,
		CommitDelay:         cfg.Delays.Commit,
	}
}

func (s Settings) capReached(state RunState) bool {
	return s.MaxTorrentsPerRun > 0 && state.Committed() >= s.MaxTorrentsPerRun
}
