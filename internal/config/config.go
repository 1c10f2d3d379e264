// Package config loads the optional agentview YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"agentview/internal/codex"
)

// Config holds the user-tunable settings. All fields are optional; zero
// values fall back to built-in defaults.
type Config struct {
	Engine           string   `yaml:"engine,omitempty"`       // "codex" or "claude"
	SessionsDir      string   `yaml:"sessions_dir,omitempty"` // overrides the default log root
	ShowRawReasoning bool     `yaml:"show_raw_reasoning,omitempty"`
	PreviewLimit     int      `yaml:"preview_limit,omitempty"` // runes kept from heavy tool payloads
	Boilerplate      []string `yaml:"boilerplate,omitempty"`   // extra wrapper tags to strip from user text
	RequestMarkers   []string `yaml:"request_markers,omitempty"`
	ImageTag         string   `yaml:"image_tag,omitempty"` // regexp for inline image placeholders
}

// DefaultPath returns the default config file location under the user's
// home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "agentview", "config.yaml"), nil
}

// Load reads a YAML config file. A missing file is not an error; it
// yields a zero-value Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Engine {
	case "", "codex", "claude":
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.PreviewLimit < 0 {
		return fmt.Errorf("preview_limit must not be negative")
	}
	if c.ImageTag != "" {
		if _, err := regexp.Compile(c.ImageTag); err != nil {
			return fmt.Errorf("parse image_tag: %w", err)
		}
	}
	return nil
}

// Markers builds the prompt markers from the config, layered over the
// defaults. Configured values extend the built-in lists rather than
// replacing them.
func (c *Config) Markers() codex.Markers {
	m := codex.DefaultMarkers()
	m.Boilerplate = append(m.Boilerplate, c.Boilerplate...)
	m.Request = append(m.Request, c.RequestMarkers...)
	if c.ImageTag != "" {
		m.ImageTag = regexp.MustCompile(c.ImageTag)
	}
	return m
}
