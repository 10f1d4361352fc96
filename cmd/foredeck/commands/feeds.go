// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/foredeck-sh/foredeck/lib/config"
	"github.com/foredeck-sh/foredeck/lib/session"
)

// loadConfig loads and validates the client configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// sessionPath resolves the session file location: the config override
// when set, otherwise the session package's own resolution
// (FOREDECK_SESSION_FILE, then the XDG config directory).
func sessionPath(cfg *config.Config) string {
	if cfg.Paths.SessionFile != "" {
		return cfg.Paths.SessionFile
	}
	return session.FilePath()
}

// openTokenSource loads the saved session and wraps it in a refreshing
// token source. The client talks to the session's own base URL —
// tokens belong to the server that issued them.
func openTokenSource(cfg *config.Config, logger *slog.Logger) (*session.TokenSource, error) {
	path := sessionPath(cfg)
	sess, err := session.LoadFrom(path)
	if err != nil {
		return nil, err
	}

	client, err := session.NewClient(session.ClientConfig{
		BaseURL: sess.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return session.NewTokenSource(session.TokenSourceConfig{
		Client:  client,
		Session: sess,
		Path:    path,
		Logger:  logger,
	})
}

// resolveChannels merges the config's watch lists with flag overrides
// into the channel labels to follow. The inbox is always included;
// non-empty flag lists replace the corresponding config list.
func resolveChannels(cfg *config.Config, integrations, triggers []string) []string {
	if len(integrations) == 0 {
		integrations = cfg.Watch.Integrations
	}
	if len(triggers) == 0 {
		triggers = cfg.Watch.Triggers
	}

	labels := []string{"inbox"}
	for _, id := range integrations {
		labels = append(labels, "integration:"+id)
	}
	for _, id := range triggers {
		labels = append(labels, "trigger:"+id)
	}
	return labels
}

// frameResource extracts the primary resource identifier from a frame
// payload — the task, conversation, run, or item the event concerns.
// Returns "" for frames with no single subject (sync transitions,
// connected acks).
func frameResource(data []byte) string {
	var probe struct {
		TaskID         string `json:"task_id"`
		ConversationID string `json:"conversation_id"`
		RunID          string `json:"run_id"`
		ItemID         string `json:"item_id"`
		ID             string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}

	for _, candidate := range []string{
		probe.TaskID, probe.ConversationID, probe.RunID, probe.ItemID, probe.ID,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
