// Package logger builds the application's zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the name of the rotated log file inside Config.Path.
const LogFileName = "cachegrab.log"

// Logger wraps zerolog for application logging.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // "console" or "json"
	Path       string `mapstructure:"path" yaml:"path"`     // directory for log files, empty disables file output
	MaxSizeMB  int    `mapstructure:"maxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" yaml:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// FilePath returns the rotated log file path, or "" when file output is off.
func (c Config) FilePath() string {
	if c.Path == "" {
		return ""
	}
	return filepath.Join(c.Path, LogFileName)
}

// IsDevBuild returns true if running via "go run".
func IsDevBuild() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return strings.Contains(exe, "go-build")
}

// New creates a new logger writing to stderr, the optional rotating file and
// any extra sinks. Extra sinks always receive JSON lines.
func New(cfg Config, extra ...io.Writer) *Logger {
	var consoleOutput io.Writer

	if cfg.Format == "json" {
		consoleOutput = os.Stderr
	} else {
		consoleOutput = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	level := ParseLevel(cfg.Level)

	if IsDevBuild() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{consoleOutput}
	var rotator *lumberjack.Logger

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   cfg.FilePath(),
				MaxSize:    orDefault(cfg.MaxSizeMB, 10),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 30),
				Compress:   cfg.Compress,
				LocalTime:  true,
			}
			writers = append(writers, rotator)
		}
	}
	writers = append(writers, extra...)

	var output io.Writer = consoleOutput
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: logger, rotator: rotator}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a new logger with component field.
func (l *Logger) WithComponent(component string) zerolog.Logger {
	return l.Logger.With().Str("component", component).Logger()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
