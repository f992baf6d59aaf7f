package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const redacted = "********"

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.RealDebrid.APIToken != "" {
		out.RealDebrid.APIToken = redacted
	}
	if out.Trakt.AccessToken != "" {
		out.Trakt.AccessToken = redacted
	}
	if out.Trakt.ClientID != "" {
		out.Trakt.ClientID = redacted
	}
	return &out
}

// WriteDefaults writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefaults(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	data, err := Default().Marshal()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
