// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"testing"
	"time"
)

func TestGlowIntensityDecay(t *testing.T) {
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewGlowTracker()
	tracker.Ignite("row-1", epoch)

	if got := tracker.Intensity("row-1", epoch); got != 1.0 {
		t.Errorf("intensity at ignition = %v, want 1.0", got)
	}
	halfway := epoch.Add(GlowDecayDuration / 2)
	if got := tracker.Intensity("row-1", halfway); got != 0.5 {
		t.Errorf("intensity at half decay = %v, want 0.5", got)
	}
	if got := tracker.Intensity("row-1", epoch.Add(GlowDecayDuration)); got != 0.0 {
		t.Errorf("intensity after full decay = %v, want 0.0", got)
	}
	if got := tracker.Intensity("never-ignited", epoch); got != 0.0 {
		t.Errorf("intensity for unknown row = %v, want 0.0", got)
	}
}

func TestGlowReigniteResetsDecay(t *testing.T) {
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewGlowTracker()
	tracker.Ignite("row-1", epoch)

	later := epoch.Add(GlowDecayDuration * 3 / 4)
	tracker.Ignite("row-1", later)
	if got := tracker.Intensity("row-1", later); got != 1.0 {
		t.Errorf("intensity after re-ignition = %v, want 1.0", got)
	}
}

func TestGlowLitTracksAndCollects(t *testing.T) {
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewGlowTracker()

	if tracker.Lit(epoch) {
		t.Error("empty tracker should not be lit")
	}

	tracker.Ignite("row-1", epoch)
	if !tracker.Lit(epoch.Add(time.Second)) {
		t.Error("tracker with fresh row should be lit")
	}

	// After full decay the entry is collected and the tracker goes
	// dark.
	afterDecay := epoch.Add(GlowDecayDuration + time.Second)
	if tracker.Lit(afterDecay) {
		t.Error("tracker should go dark after decay")
	}
	if len(tracker.arrivals) != 0 {
		t.Errorf("decayed entries not collected: %d remain", len(tracker.arrivals))
	}
}

func TestGlowBackgroundThresholds(t *testing.T) {
	theme := DarkTheme

	color, lit := theme.GlowBackground(1.0)
	if !lit || color != theme.GlowBrightBackground {
		t.Errorf("full intensity: got (%v, %v), want bright background", color, lit)
	}
	color, lit = theme.GlowBackground(0.25)
	if !lit || color != theme.GlowDimBackground {
		t.Errorf("fading intensity: got (%v, %v), want dim background", color, lit)
	}
	if _, lit := theme.GlowBackground(0); lit {
		t.Error("zero intensity should report no glow")
	}
}
