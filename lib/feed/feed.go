// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed builds ready-to-connect subscriptions for the four
// Foredeck streaming channels: inbox notifications, chat turns,
// integration activity, and trigger runs.
//
// Each constructor pairs a channel endpoint with the decoder for its
// payload schema and returns a [stream.Subscription]; callers hold the
// handle to connect, observe state, and disconnect. The package is
// the only place that knows both the URL layout and which schema type
// each frame decodes to — consumers deal in schema structs and never
// see raw frames.
package feed

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foredeck-sh/foredeck/lib/clock"
	"github.com/foredeck-sh/foredeck/lib/stream"
)

// Config carries the shared wiring every channel needs. One Config is
// typically built per server profile and reused across channels.
type Config struct {
	// BaseURL is the server root, e.g. "https://api.foredeck.sh".
	// Required.
	BaseURL string

	// Tokens supplies bearer tokens for stream requests. Required.
	Tokens stream.TokenSource

	// HTTPClient overrides the dialing client; nil means a default
	// client with no timeout.
	HTTPClient *http.Client

	// Clock overrides the reconnect timer source; nil means the system
	// clock.
	Clock clock.Clock

	// Logger receives connection diagnostics; nil means slog.Default().
	Logger *slog.Logger

	// OnStateChange observes subscription lifecycle transitions, for
	// surfaces that show connection health.
	OnStateChange func(state stream.State, backoff time.Duration)
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("feed: base URL required")
	}
	if c.Tokens == nil {
		return errors.New("feed: token source required")
	}
	return nil
}

// endpoint joins the base URL with an API path.
func (c Config) endpoint(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + path
}

// channel assembles the common subscription config for one endpoint.
func (c Config) channel(endpoint, label string, dispatch stream.Dispatcher) stream.ChannelConfig {
	return stream.ChannelConfig{
		Endpoint:      endpoint,
		Tokens:        c.Tokens,
		Dispatch:      dispatch,
		HTTPClient:    c.HTTPClient,
		Clock:         c.Clock,
		Logger:        c.Logger,
		Label:         label,
		OnStateChange: c.OnStateChange,
	}
}
