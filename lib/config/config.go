// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the foredeck client configuration.
type Config struct {
	// Profile selects the named profile whose overrides apply. The
	// FOREDECK_PROFILE environment variable takes precedence over the
	// file value. Empty means base values only.
	Profile string `yaml:"profile"`

	// Server locates the platform API.
	Server ServerConfig `yaml:"server"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Watch configures which resources the watch and tail commands
	// follow.
	Watch WatchConfig `yaml:"watch"`

	// Log configures client logging.
	Log LogConfig `yaml:"log"`

	// Profiles contains named override sections, applied after the
	// base values when Profile matches.
	Profiles map[string]*Overrides `yaml:"profiles,omitempty"`
}

// Overrides contains the fields a profile may override.
type Overrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Watch  *WatchConfig  `yaml:"watch,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// ServerConfig locates the platform API.
type ServerConfig struct {
	// BaseURL is the platform API origin, e.g. https://api.foredeck.sh.
	// Stream endpoints are resolved relative to it.
	BaseURL string `yaml:"base_url"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// SessionFile overrides the saved-session location. Empty means
	// the session package's own resolution (FOREDECK_SESSION_FILE,
	// then the XDG config directory).
	SessionFile string `yaml:"session_file"`

	// Journal is the SQLite event journal path.
	// Default: $XDG_STATE_HOME/foredeck/events.db
	Journal string `yaml:"journal"`

	// Captures is the default output directory for recorded streams.
	// Default: $XDG_DATA_HOME/foredeck/captures
	Captures string `yaml:"captures"`
}

// WatchConfig configures which resources the watch and tail commands
// follow.
type WatchConfig struct {
	// Integrations lists integration IDs whose activity streams are
	// followed alongside the inbox.
	Integrations []string `yaml:"integrations"`

	// Triggers lists trigger IDs to follow.
	Triggers []string `yaml:"triggers"`

	// Conversation is a chat conversation ID to tail in the viewer.
	// Empty means no chat channel.
	Conversation string `yaml:"conversation"`
}

// LogConfig configures client logging.
type LogConfig struct {
	// Level is the minimum slog level: debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. Every field has a usable
// value so the client runs with no config file at all.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return &Config{
		Server: ServerConfig{
			BaseURL: "https://api.foredeck.sh",
		},
		Paths: PathsConfig{
			Journal:  filepath.Join(stateDir, "foredeck", "events.db"),
			Captures: filepath.Join(dataDir, "foredeck", "captures"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the config file location used when FOREDECK_CONFIG
// is not set: $XDG_CONFIG_HOME/foredeck/config.yaml, falling back to
// ~/.config/foredeck/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "foredeck", "config.yaml")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "foredeck", "config.yaml")
}

// Load loads configuration from FOREDECK_CONFIG if set, otherwise from
// DefaultPath. A missing default file yields the defaults (plus
// environment overrides); a missing FOREDECK_CONFIG file is an error,
// since the caller asked for that file specifically.
func Load() (*Config, error) {
	if path := os.Getenv("FOREDECK_CONFIG"); path != "" {
		return LoadFile(path)
	}

	path := DefaultPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		cfg.applyEnvironment()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, applying
// profile overrides, FOREDECK_* environment overrides, and variable
// expansion on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyProfile()
	cfg.applyEnvironment()
	cfg.expandVariables()

	return cfg, nil
}

// applyProfile applies the selected profile's overrides. The profile
// name itself may come from FOREDECK_PROFILE so one invocation can
// target another workspace without editing the file.
func (c *Config) applyProfile() {
	if name := os.Getenv("FOREDECK_PROFILE"); name != "" {
		c.Profile = name
	}
	if c.Profile == "" {
		return
	}

	overrides := c.Profiles[c.Profile]
	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.BaseURL != "" {
			c.Server.BaseURL = overrides.Server.BaseURL
		}
	}

	if overrides.Paths != nil {
		if overrides.Paths.SessionFile != "" {
			c.Paths.SessionFile = overrides.Paths.SessionFile
		}
		if overrides.Paths.Journal != "" {
			c.Paths.Journal = overrides.Paths.Journal
		}
		if overrides.Paths.Captures != "" {
			c.Paths.Captures = overrides.Paths.Captures
		}
	}

	if overrides.Watch != nil {
		if len(overrides.Watch.Integrations) > 0 {
			c.Watch.Integrations = overrides.Watch.Integrations
		}
		if len(overrides.Watch.Triggers) > 0 {
			c.Watch.Triggers = overrides.Watch.Triggers
		}
		if overrides.Watch.Conversation != "" {
			c.Watch.Conversation = overrides.Watch.Conversation
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
	}
}

// applyEnvironment applies FOREDECK_* value overrides. These beat both
// the file and the active profile, so a single invocation can point at
// another server without editing anything.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("FOREDECK_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("FOREDECK_JOURNAL"); v != "" {
		c.Paths.Journal = v
	}
	if v := os.Getenv("FOREDECK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.SessionFile = expandVars(c.Paths.SessionFile, vars)
	c.Paths.Journal = expandVars(c.Paths.Journal, vars)
	c.Paths.Captures = expandVars(c.Paths.Captures, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all problems
// at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.BaseURL == "" {
		errs = append(errs, fmt.Errorf("server.base_url is required"))
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("server.base_url must be an http(s) URL, got %q", c.Server.BaseURL))
	}

	if c.Paths.Journal == "" {
		errs = append(errs, fmt.Errorf("paths.journal is required"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}

	if c.Profile != "" && c.Profiles[c.Profile] == nil {
		errs = append(errs, fmt.Errorf("profile %q is not defined in profiles", c.Profile))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LogLevel returns the slog level for Log.Level. Unknown values fall
// back to info; Validate rejects them separately.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnsurePaths creates the directories behind the configured paths.
// Private to the user: event journals and captures can carry message
// content.
func (c *Config) EnsurePaths() error {
	dirs := []string{
		filepath.Dir(c.Paths.Journal),
		c.Paths.Captures,
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
