// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// TokenSourceConfig holds configuration for creating a TokenSource.
type TokenSourceConfig struct {
	// Client performs the refresh calls.
	Client *Client

	// Session is the starting state, typically loaded from disk.
	Session *Session

	// Path is where rotated sessions are persisted. Empty disables
	// persistence (ephemeral logins, tests).
	Path string

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// TokenSource serves access tokens from a saved session and rotates
// them through the refresh endpoint on demand. It implements
// stream.TokenSource.
//
// Token is lock-free: the current access token lives in an atomic
// cell read on every stream dial. Refresh is single-flighted: when
// several channels hit 401 together, the first caller performs the
// rotation and the rest reuse its result, so the single-use refresh
// token is burned only once.
type TokenSource struct {
	client *Client
	path   string
	logger *slog.Logger

	current atomic.Value // string: the access token

	// mu serializes rotations and guards the session copy, whose
	// refresh token changes on every rotation.
	mu   sync.Mutex
	sess Session
}

// NewTokenSource creates a TokenSource over a saved session.
func NewTokenSource(config TokenSourceConfig) (*TokenSource, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("session: TokenSource requires a Client")
	}
	if config.Session == nil {
		return nil, fmt.Errorf("session: TokenSource requires a Session")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &TokenSource{
		client: config.Client,
		path:   config.Path,
		logger: logger,
		sess:   *config.Session,
	}
	s.current.Store(config.Session.AccessToken)
	return s, nil
}

// Token returns the current access token. Never blocks.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	token, _ := s.current.Load().(string)
	return token, nil
}

// Refresh rotates the token pair through the refresh endpoint and
// returns the new access token. If another caller rotated while this
// one waited for the lock, its result is returned without a second
// network call.
func (s *TokenSource) Refresh(ctx context.Context) (string, error) {
	stale, _ := s.current.Load().(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, _ := s.current.Load().(string); current != stale {
		return current, nil
	}

	if s.sess.RefreshToken == "" {
		return "", fmt.Errorf("session: no refresh token available")
	}

	rotated, err := s.client.Refresh(ctx, s.sess.RefreshToken)
	if err != nil {
		return "", err
	}

	// The server may omit fields it does not rotate.
	if rotated.Handle == "" {
		rotated.Handle = s.sess.Handle
	}
	s.sess = *rotated
	s.current.Store(rotated.AccessToken)

	if s.path != "" {
		if err := SaveTo(rotated, s.path); err != nil {
			// The fresh tokens still work for this process; the next
			// run will just need another login.
			s.logger.Warn("failed to persist rotated session",
				"path", s.path, "error", err)
		}
	}

	s.logger.Debug("rotated session tokens", "handle", s.sess.Handle)
	return rotated.AccessToken, nil
}

// Session returns a copy of the current session state.
func (s *TokenSource) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}
