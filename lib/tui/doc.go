// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides shared terminal user interface primitives for
// Foredeck's interactive viewers: the color theme, fuzzy matching for
// filter input, arrival-glow animation, and a compact ANSI markdown
// renderer for chat and notification bodies.
//
// The live event watcher imports this package for consistent look and
// behavior. Viewers own their own data sources, layout, and
// domain-specific rendering; this package holds only what any viewer
// of Foredeck streams needs.
package tui
