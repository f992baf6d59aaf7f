// Package config loads and validates cachegrab configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cachegrab/cachegrab/internal/catalog"
	"github.com/cachegrab/cachegrab/internal/catalog/trakt"
	"github.com/cachegrab/cachegrab/internal/debrid/realdebrid"
	"github.com/cachegrab/cachegrab/internal/indexer/torrentio"
	"github.com/cachegrab/cachegrab/internal/logger"
	"github.com/cachegrab/cachegrab/internal/quality"
)

// EnvPrefix prefixes every environment override, e.g. CACHEGRAB_REALDEBRID_APITOKEN.
const EnvPrefix = "CACHEGRAB"

// Config holds all application configuration.
type Config struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	DryRun          bool `mapstructure:"dryRun" yaml:"dryRun"`
	UpgradeExisting bool `mapstructure:"upgradeExisting" yaml:"upgradeExisting"`

	QualityPreferences quality.Preferences   `mapstructure:"qualityPreferences" yaml:"qualityPreferences"`
	ContentSources     catalog.SourcesConfig `mapstructure:"contentSources" yaml:"contentSources"`
	Limits             LimitsConfig          `mapstructure:"limits" yaml:"limits"`
	Delays             DelaysConfig          `mapstructure:"delays" yaml:"delays"`

	Trakt      trakt.Config      `mapstructure:"trakt" yaml:"trakt"`
	Torrentio  torrentio.Config  `mapstructure:"torrentio" yaml:"torrentio"`
	RealDebrid realdebrid.Config `mapstructure:"realDebrid" yaml:"realDebrid"`

	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Logging  logger.Config  `mapstructure:"logging" yaml:"logging"`
}

// LimitsConfig caps how much a run may commit.
type LimitsConfig struct {
	MaxTorrentsPerRun   int `mapstructure:"maxTorrentsPerRun" yaml:"maxTorrentsPerRun"`
	MaxTorrentsPerTitle int `mapstructure:"maxTorrentsPerTitle" yaml:"maxTorrentsPerTitle"`
}

// DelaysConfig holds the fixed pauses between external calls.
type DelaysConfig struct {
	Search     time.Duration `mapstructure:"search" yaml:"search"`
	ProbeBatch time.Duration `mapstructure:"probeBatch" yaml:"probeBatch"`
	Commit     time.Duration `mapstructure:"commit" yaml:"commit"`
}

// ScheduleConfig controls daemon mode.
type ScheduleConfig struct {
	Cron       string `mapstructure:"cron" yaml:"cron"`
	RunOnStart bool   `mapstructure:"runOnStart" yaml:"runOnStart"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// KeepRuns is how many runs the history cleanup task retains.
	KeepRuns int `mapstructure:"keepRuns" yaml:"keepRuns"`
}

// ConfigError reports an invalid or missing setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Enabled:         true,
		DryRun:          false,
		UpgradeExisting: true,
		ContentSources: catalog.SourcesConfig{
			Trending: catalog.ListSource{Enabled: true, Movies: true, Shows: false, Limit: 20},
			Popular:  catalog.ListSource{Enabled: false, Movies: true, Shows: false, Limit: 20},
			Lists:    []catalog.CustomList{},
		},
		Limits: LimitsConfig{
			MaxTorrentsPerRun:   5,
			MaxTorrentsPerTitle: 1,
		},
		Delays: DelaysConfig{
			Search:     time.Second,
			ProbeBatch: time.Second,
			Commit:     1500 * time.Millisecond,
		},
		Trakt: trakt.Config{
			ClientID: EmbeddedTraktClientID,
			BaseURL:  trakt.DefaultBaseURL,
		},
		Torrentio: torrentio.Config{
			BaseURL:       torrentio.DefaultBaseURL,
			Sort:          torrentio.DefaultSort,
			QualityFilter: []string{"cam", "scr", "threed"},
		},
		RealDebrid: realdebrid.Config{
			BaseURL: realdebrid.DefaultBaseURL,
		},
		Schedule: ScheduleConfig{
			Cron:       "0 */6 * * *",
			RunOnStart: true,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8585,
		},
		Database: DatabaseConfig{
			Path:     "./data/cachegrab.db",
			KeepRuns: 200,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load reads configuration from a .env file, the config file and
// environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(configPath); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, Default())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.cachegrab")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads .env from the working directory and, when a config file
// is given, from its directory. Existing environment variables win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// setDefaults registers every key so that environment overrides apply even
// when the config file omits it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("enabled", d.Enabled)
	v.SetDefault("dryRun", d.DryRun)
	v.SetDefault("upgradeExisting", d.UpgradeExisting)

	v.SetDefault("qualityPreferences.minFileSizeGB", d.QualityPreferences.MinFileSizeGB)
	v.SetDefault("qualityPreferences.maxFileSizeGB", d.QualityPreferences.MaxFileSizeGB)
	v.SetDefault("qualityPreferences.minResolution", d.QualityPreferences.MinResolution)
	v.SetDefault("qualityPreferences.preferredResolutions", d.QualityPreferences.PreferredResolutions)
	v.SetDefault("qualityPreferences.preferredKeywords", d.QualityPreferences.PreferredKeywords)
	v.SetDefault("qualityPreferences.preferredCodecs", d.QualityPreferences.PreferredCodecs)
	v.SetDefault("qualityPreferences.excludeKeywords", d.QualityPreferences.ExcludeKeywords)
	v.SetDefault("qualityPreferences.requireHDR", d.QualityPreferences.RequireHDR)
	v.SetDefault("qualityPreferences.requireRemux", d.QualityPreferences.RequireRemux)

	for name, ls := range map[string]catalog.ListSource{
		"trending": d.ContentSources.Trending,
		"popular":  d.ContentSources.Popular,
	} {
		v.SetDefault("contentSources."+name+".enabled", ls.Enabled)
		v.SetDefault("contentSources."+name+".movies", ls.Movies)
		v.SetDefault("contentSources."+name+".shows", ls.Shows)
		v.SetDefault("contentSources."+name+".limit", ls.Limit)
	}
	v.SetDefault("contentSources.watchlist.enabled", d.ContentSources.Watchlist.Enabled)
	v.SetDefault("contentSources.watchlist.owner", d.ContentSources.Watchlist.Owner)

	v.SetDefault("limits.maxTorrentsPerRun", d.Limits.MaxTorrentsPerRun)
	v.SetDefault("limits.maxTorrentsPerTitle", d.Limits.MaxTorrentsPerTitle)

	v.SetDefault("delays.search", d.Delays.Search)
	v.SetDefault("delays.probeBatch", d.Delays.ProbeBatch)
	v.SetDefault("delays.commit", d.Delays.Commit)

	v.SetDefault("trakt.clientId", d.Trakt.ClientID)
	v.SetDefault("trakt.accessToken", d.Trakt.AccessToken)
	v.SetDefault("trakt.baseUrl", d.Trakt.BaseURL)

	v.SetDefault("torrentio.baseUrl", d.Torrentio.BaseURL)
	v.SetDefault("torrentio.sort", d.Torrentio.Sort)
	v.SetDefault("torrentio.qualityFilter", d.Torrentio.QualityFilter)

	v.SetDefault("realDebrid.apiToken", d.RealDebrid.APIToken)
	v.SetDefault("realDebrid.baseUrl", d.RealDebrid.BaseURL)

	v.SetDefault("schedule.cron", d.Schedule.Cron)
	v.SetDefault("schedule.runOnStart", d.Schedule.RunOnStart)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.keepRuns", d.Database.KeepRuns)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.maxSizeMB", d.Logging.MaxSizeMB)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("logging.maxAgeDays", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Validate checks the configuration before any network activity.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RealDebrid.APIToken) == "" {
		return &ConfigError{Field: "realDebrid.apiToken", Reason: "required (set CACHEGRAB_REALDEBRID_APITOKEN or realDebrid.apiToken)"}
	}
	if c.Limits.MaxTorrentsPerRun < 1 {
		return &ConfigError{Field: "limits.maxTorrentsPerRun", Reason: "must be at least 1"}
	}
	if c.Limits.MaxTorrentsPerTitle < 1 {
		return &ConfigError{Field: "limits.maxTorrentsPerTitle", Reason: "must be at least 1"}
	}
	if err := c.QualityPreferences.Validate(); err != nil {
		return &ConfigError{Field: "qualityPreferences", Reason: err.Error()}
	}
	for name, d := range map[string]time.Duration{
		"delays.search":     c.Delays.Search,
		"delays.probeBatch": c.Delays.ProbeBatch,
		"delays.commit":     c.Delays.Commit,
	} {
		if d < 0 {
			return &ConfigError{Field: name, Reason: "must not be negative"}
		}
	}
	for i, l := range c.ContentSources.Lists {
		if l.Owner == "" || l.Slug == "" {
			return &ConfigError{Field: fmt.Sprintf("contentSources.lists[%d]", i), Reason: "owner and slug are required"}
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return &ConfigError{Field: "logging.format", Reason: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Reason: "must be between 1 and 65535"}
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LockPath returns the single-run lock file next to the database.
func (c *DatabaseConfig) LockPath() string {
	return filepath.Join(filepath.Dir(c.Path), "cachegrab.lock")
}
