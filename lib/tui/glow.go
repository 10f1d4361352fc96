// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// GlowDecayDuration is how long a feed row glows after its event
// arrives. Intensity starts at 1.0 and decays linearly to 0.0 over
// this duration.
const GlowDecayDuration = 4 * time.Second

// GlowTickInterval is the re-render interval while any rows are lit.
// 100ms gives ~10fps, smooth enough for a two-step background fade.
const GlowTickInterval = 100 * time.Millisecond

// GlowTracker maps feed row keys to arrival timestamps for animated
// highlighting of freshly received events. Each arrival "ignites" a
// row, which then fades from full intensity to zero over
// [GlowDecayDuration]. The feed is append-only, so unlike a mutable
// list view there is only one kind of change to animate.
type GlowTracker struct {
	arrivals map[string]time.Time
}

// NewGlowTracker creates an empty glow tracker.
func NewGlowTracker() *GlowTracker {
	return &GlowTracker{
		arrivals: make(map[string]time.Time),
	}
}

// Ignite records an event arrival for a row. Re-igniting a row resets
// its fade timer.
func (tracker *GlowTracker) Ignite(rowKey string, now time.Time) {
	tracker.arrivals[rowKey] = now
}

// Intensity returns the current glow for a row: 1.0 at arrival,
// linearly decaying to 0.0 over [GlowDecayDuration]. Returns 0.0 for
// rows that were never ignited or have fully faded.
func (tracker *GlowTracker) Intensity(rowKey string, now time.Time) float64 {
	arrival, exists := tracker.arrivals[rowKey]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(arrival)
	if elapsed >= GlowDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(GlowDecayDuration)
}

// Lit returns true if any tracked row still has intensity > 0,
// meaning the tick timer should keep running for animation. Fully
// faded entries are garbage-collected as a side effect.
func (tracker *GlowTracker) Lit(now time.Time) bool {
	for rowKey, arrival := range tracker.arrivals {
		if now.Sub(arrival) < GlowDecayDuration {
			return true
		}
		delete(tracker.arrivals, rowKey)
	}
	return false
}
