// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foredeck-sh/foredeck/lib/secret"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{BaseURL: serverURL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func passwordBuffer(t *testing.T, password string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(password))
	if err != nil {
		t.Fatalf("creating password buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestLogin(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth/login" {
			t.Errorf("got %s %s, want POST /api/v1/auth/login", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("got Content-Type %q, want application/json", ct)
		}
		var req struct {
			Handle   string `json:"handle"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding login request: %v", err)
		}
		if req.Handle != "mel" || req.Password != "hunter2" {
			t.Errorf("got credentials %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"handle":        "mel",
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_at":    "2026-04-01T12:00:00Z",
		})
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	sess, err := client.Login(context.Background(), "mel", passwordBuffer(t, "hunter2"))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if sess.Handle != "mel" || sess.AccessToken != "access-1" || sess.RefreshToken != "refresh-1" {
		t.Errorf("got session %+v", sess)
	}
	if sess.BaseURL != server.URL {
		t.Errorf("got base URL %q, want %q", sess.BaseURL, server.URL)
	}
	want := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	if !sess.ExpiresAt.Equal(want) {
		t.Errorf("got expiry %v, want %v", sess.ExpiresAt, want)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid credentials"}`)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	_, err := client.Login(context.Background(), "mel", passwordBuffer(t, "wrong"))
	if err == nil {
		t.Fatal("login with bad credentials should fail")
	}

	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("got %T, want *LoginError", err)
	}
	if loginErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", loginErr.StatusCode)
	}
	if loginErr.Message != "invalid credentials" {
		t.Errorf("got message %q, want server error text", loginErr.Message)
	}
}

func TestLoginErrorFallsBackToRawBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream exploded\n")
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	_, err := client.Login(context.Background(), "mel", passwordBuffer(t, "pw"))

	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("got %T, want *LoginError", err)
	}
	if loginErr.Message != "upstream exploded" {
		t.Errorf("got message %q, want trimmed raw body", loginErr.Message)
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/refresh" {
			t.Errorf("got path %s, want /api/v1/auth/refresh", r.URL.Path)
		}
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding refresh request: %v", err)
		}
		if req.RefreshToken != "refresh-1" {
			t.Errorf("got refresh token %q, want refresh-1", req.RefreshToken)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"handle":        "mel",
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
		})
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	sess, err := client.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sess.AccessToken != "access-2" || sess.RefreshToken != "refresh-2" {
		t.Errorf("got rotated session %+v", sess)
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://example.invalid")
	if _, err := client.Refresh(context.Background(), ""); err == nil {
		t.Error("refresh with no token should fail before dialing")
	}
}

func TestWhoAmI(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/auth/whoami" {
			t.Errorf("got %s %s, want GET /api/v1/auth/whoami", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer access-1" {
			t.Errorf("got Authorization %q, want Bearer access-1", auth)
		}
		json.NewEncoder(w).Encode(Identity{Handle: "mel", Workspace: "acme"})
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	identity, err := client.WhoAmI(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if identity.Handle != "mel" || identity.Workspace != "acme" {
		t.Errorf("got identity %+v", identity)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("NewClient without BaseURL should fail")
	}
}
