// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foredeck-sh/foredeck/lib/secret"
)

// Session holds the authenticated state saved by "foredeck login".
// Loaded automatically by commands that require authentication (watch,
// tail, record). Analogous to SSH keys — set up once, then
// transparent.
type Session struct {
	// Handle is the user's platform handle (e.g., "mel").
	Handle string `json:"handle"`

	// AccessToken authorizes API and stream requests. Short-lived;
	// rotated via the refresh endpoint when it expires.
	AccessToken string `json:"access_token"`

	// RefreshToken redeems a new token pair when the access token
	// expires. Single-use: each refresh rotates it.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the access token's expiry, as reported by the
	// server. Advisory — the stream connector refreshes on 401 rather
	// than watching the clock.
	ExpiresAt time.Time `json:"expires_at"`

	// BaseURL is the platform origin this session belongs to, so
	// commands talk to the server that was logged into.
	BaseURL string `json:"base_url"`
}

// FilePath returns the path to the saved session file. Checks the
// FOREDECK_SESSION_FILE environment variable first, then falls back to
// $XDG_CONFIG_HOME/foredeck/session.json (~/.config if unset).
func FilePath() string {
	if envPath := os.Getenv("FOREDECK_SESSION_FILE"); envPath != "" {
		return envPath
	}

	configDirectory := os.Getenv("XDG_CONFIG_HOME")
	if configDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			// Fallback — this should rarely happen.
			return filepath.Join("/tmp", "foredeck-session.json")
		}
		configDirectory = filepath.Join(homeDirectory, ".config")
	}
	return filepath.Join(configDirectory, "foredeck", "session.json")
}

// Load reads the session from the well-known path. Returns a clear
// error directing the user to "foredeck login" if no session exists.
func Load() (*Session, error) {
	return LoadFrom(FilePath())
}

// LoadFrom reads a session from a specific file path.
func LoadFrom(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no foredeck session found at %s — run \"foredeck login\" first", path)
		}
		return nil, fmt.Errorf("reading session file %s: %w", path, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		secret.Zero(data)
		return nil, fmt.Errorf("parsing session file %s: %w", path, err)
	}
	secret.Zero(data)

	if sess.Handle == "" {
		return nil, fmt.Errorf("session file %s has no handle", path)
	}
	if sess.AccessToken == "" {
		return nil, fmt.Errorf("session file %s has no access_token", path)
	}
	if sess.BaseURL == "" {
		return nil, fmt.Errorf("session file %s has no base_url", path)
	}

	return &sess, nil
}

// Save writes the session to the well-known path.
func Save(sess *Session) error {
	return SaveTo(sess, FilePath())
}

// SaveTo writes a session to a specific file path. Creates the parent
// directory with mode 0700 if needed; the file itself is mode 0600
// since it contains tokens.
func SaveTo(sess *Session, path string) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		secret.Zero(data)
		return fmt.Errorf("creating session directory %s: %w", directory, err)
	}

	writeError := os.WriteFile(path, data, 0o600)
	secret.Zero(data)
	if writeError != nil {
		return fmt.Errorf("writing session file %s: %w", path, writeError)
	}

	return nil
}
