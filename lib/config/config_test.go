// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// clearEnvOverrides neutralizes ambient FOREDECK_* variables so tests
// see only what they set themselves.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"FOREDECK_CONFIG", "FOREDECK_PROFILE", "FOREDECK_BASE_URL",
		"FOREDECK_JOURNAL", "FOREDECK_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	cfg := Default()

	if cfg.Server.BaseURL != "https://api.foredeck.sh" {
		t.Errorf("got base_url %q, want https://api.foredeck.sh", cfg.Server.BaseURL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("got log level %q, want info", cfg.Log.Level)
	}
	if cfg.Paths.Journal != "/xdg/state/foredeck/events.db" {
		t.Errorf("got journal %q, want /xdg/state/foredeck/events.db", cfg.Paths.Journal)
	}
	if cfg.Paths.Captures != "/xdg/data/foredeck/captures" {
		t.Errorf("got captures %q, want /xdg/data/foredeck/captures", cfg.Paths.Captures)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
server:
  base_url: https://workspace.example.com

paths:
  journal: /custom/events.db
  captures: /custom/captures

watch:
  integrations: [int-1, int-2]
  triggers: [trg-1]
  conversation: conv-7

log:
  level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.BaseURL != "https://workspace.example.com" {
		t.Errorf("got base_url %q", cfg.Server.BaseURL)
	}
	if cfg.Paths.Journal != "/custom/events.db" {
		t.Errorf("got journal %q", cfg.Paths.Journal)
	}
	if len(cfg.Watch.Integrations) != 2 || cfg.Watch.Integrations[0] != "int-1" {
		t.Errorf("got integrations %v", cfg.Watch.Integrations)
	}
	if cfg.Watch.Conversation != "conv-7" {
		t.Errorf("got conversation %q", cfg.Watch.Conversation)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("got log level %q, want debug", cfg.Log.Level)
	}
}

func TestProfileOverrides(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
profile: staging

server:
  base_url: https://api.foredeck.sh

watch:
  integrations: [int-base]

profiles:
  staging:
    server:
      base_url: https://staging.foredeck.sh
    log:
      level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.BaseURL != "https://staging.foredeck.sh" {
		t.Errorf("got base_url %q, want staging override", cfg.Server.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("got log level %q, want debug from profile", cfg.Log.Level)
	}
	// Fields the profile does not mention keep their base values.
	if len(cfg.Watch.Integrations) != 1 || cfg.Watch.Integrations[0] != "int-base" {
		t.Errorf("got integrations %v, want base list", cfg.Watch.Integrations)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config with known profile should validate: %v", err)
	}
}

func TestProfileFromEnvironment(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("FOREDECK_PROFILE", "alt")
	path := writeConfig(t, `
profile: staging

profiles:
  staging:
    server:
      base_url: https://staging.foredeck.sh
  alt:
    server:
      base_url: https://alt.foredeck.sh
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Profile != "alt" {
		t.Errorf("got profile %q, want alt from environment", cfg.Profile)
	}
	if cfg.Server.BaseURL != "https://alt.foredeck.sh" {
		t.Errorf("got base_url %q, want alt override", cfg.Server.BaseURL)
	}
}

func TestEnvironmentBeatsProfile(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("FOREDECK_BASE_URL", "http://localhost:8089")
	path := writeConfig(t, `
profile: staging

profiles:
  staging:
    server:
      base_url: https://staging.foredeck.sh
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.BaseURL != "http://localhost:8089" {
		t.Errorf("got base_url %q, want environment override", cfg.Server.BaseURL)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnvOverrides(t)
	// Point XDG_CONFIG_HOME at an empty directory so no default file
	// is found.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load without a config file: %v", err)
	}
	if cfg.Server.BaseURL != "https://api.foredeck.sh" {
		t.Errorf("got base_url %q, want default", cfg.Server.BaseURL)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("FOREDECK_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("Load with missing FOREDECK_CONFIG file should fail")
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/foredeck",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/foredeck",
		},
		{
			input:    "${MISSING_VALUE_FOR_TEST:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestExpandVariablesInPaths(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("FOREDECK_WORKDIR", "/srv/foredeck")
	path := writeConfig(t, `
paths:
  journal: ${FOREDECK_WORKDIR}/events.db
  captures: ${FOREDECK_CAPTURE_DIR:-/tmp/captures}
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Paths.Journal != "/srv/foredeck/events.db" {
		t.Errorf("got journal %q, want expanded path", cfg.Paths.Journal)
	}
	if cfg.Paths.Captures != "/tmp/captures" {
		t.Errorf("got captures %q, want default expansion", cfg.Paths.Captures)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty base URL",
			modify: func(c *Config) {
				c.Server.BaseURL = ""
			},
			wantErr: true,
		},
		{
			name: "non-http base URL",
			modify: func(c *Config) {
				c.Server.BaseURL = "ftp://example.com"
			},
			wantErr: true,
		},
		{
			name: "unknown log level",
			modify: func(c *Config) {
				c.Log.Level = "loud"
			},
			wantErr: true,
		},
		{
			name: "empty journal path",
			modify: func(c *Config) {
				c.Paths.Journal = ""
			},
			wantErr: true,
		},
		{
			name: "undefined profile selected",
			modify: func(c *Config) {
				c.Profile = "ghost"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := Config{Log: LogConfig{Level: tt.level}}
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Journal = filepath.Join(tmpDir, "state", "events.db")
	cfg.Paths.Captures = filepath.Join(tmpDir, "captures")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}

	for _, dir := range []string{filepath.Join(tmpDir, "state"), cfg.Paths.Captures} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestDefaultPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")

	if got := DefaultPath(); got != "/xdg/config/foredeck/config.yaml" {
		t.Errorf("got %q, want /xdg/config/foredeck/config.yaml", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	if got := DefaultPath(); !strings.HasSuffix(got, filepath.Join(".config", "foredeck", "config.yaml")) {
		t.Errorf("got %q, want ~/.config fallback", got)
	}
}
