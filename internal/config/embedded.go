package config

// Embedded credentials injected at build time via ldflags. They serve as
// defaults and can be overridden by environment variables or the config file.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/cachegrab/cachegrab/internal/config.EmbeddedTraktClientID=xxx'"
var (
	EmbeddedTraktClientID string
)

// Version is the build version, set via ldflags.
var Version = "dev"
