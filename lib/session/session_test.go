// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	saved := &Session{
		Handle:       "mel",
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		ExpiresAt:    time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		BaseURL:      "https://api.foredeck.sh",
	}

	if err := SaveTo(saved, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat session file: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("got session file mode %o, want 600", mode)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if *loaded != *saved {
		t.Errorf("got %+v, want %+v", loaded, saved)
	}
}

func TestLoadMissingFileDirectsToLogin(t *testing.T) {
	t.Parallel()

	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("loading a missing session should fail")
	}
	if !strings.Contains(err.Error(), "foredeck login") {
		t.Errorf("error %q should direct the user to foredeck login", err)
	}
}

func TestLoadRejectsIncompleteSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"no handle", `{"access_token":"a","base_url":"https://x"}`},
		{"no access token", `{"handle":"mel","base_url":"https://x"}`},
		{"no base URL", `{"handle":"mel","access_token":"a"}`},
		{"not JSON", `who goes there`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "session.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatalf("writing session: %v", err)
			}
			if _, err := LoadFrom(path); err == nil {
				t.Error("incomplete session should fail to load")
			}
		})
	}
}

func TestFilePathResolution(t *testing.T) {
	t.Setenv("FOREDECK_SESSION_FILE", "/explicit/session.json")
	if got := FilePath(); got != "/explicit/session.json" {
		t.Errorf("got %q, want FOREDECK_SESSION_FILE value", got)
	}

	t.Setenv("FOREDECK_SESSION_FILE", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	if got := FilePath(); got != "/xdg/config/foredeck/session.json" {
		t.Errorf("got %q, want XDG config path", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	if got := FilePath(); !strings.HasSuffix(got, filepath.Join(".config", "foredeck", "session.json")) {
		t.Errorf("got %q, want ~/.config fallback", got)
	}
}
