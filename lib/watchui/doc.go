// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchui is the terminal event watcher: a bubbletea model
// rendering the live Foredeck event feed in two panes, with a fuzzy
// filter, per-channel connection status, and a footer that mirrors
// slog records.
//
// The model owns no network state. Subscription callbacks convert
// decoded events into [Row] values and deliver them with
// program.Send(EventMsg{...}); connection transitions arrive the same
// way as [StateMsg]. Everything else — key routing, filtering,
// scrolling, rendering — happens inside Update and View on the
// program's goroutine.
package watchui
