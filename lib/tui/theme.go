// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/foredeck-sh/foredeck/lib/schema"
	"github.com/foredeck-sh/foredeck/lib/stream"
)

// Theme defines the color palette and visual properties for Foredeck's
// terminal UIs. All colors use lipgloss ANSI 256-color codes for broad
// terminal compatibility.
//
// The fields cover both universal chrome (text, selection, borders)
// and the semantic categories the event watcher renders: connection
// lifecycle states, event channels, and inbox task statuses.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	ErrorText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Connection lifecycle colors, one per stream state. The status
	// bar shows one segment per subscribed channel in these colors.
	StateIdle         lipgloss.Color
	StateConnecting   lipgloss.Color
	StateOpen         lipgloss.Color
	StateReconnecting lipgloss.Color
	StateClosed       lipgloss.Color

	// Channel accents for feed rows and status bar segments.
	AccentInbox       lipgloss.Color
	AccentChat        lipgloss.Color
	AccentIntegration lipgloss.Color
	AccentTrigger     lipgloss.Color

	// Inbox task lifecycle colors.
	StatusQueued       lipgloss.Color
	StatusRunning      lipgloss.Color
	StatusWaitingInput lipgloss.Color
	StatusCompleted    lipgloss.Color
	StatusFailed       lipgloss.Color
	StatusCancelled    lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Fuzzy filter highlighting: foreground for matched characters.
	MatchForeground lipgloss.Color

	// Autolinked URLs.
	LinkForeground lipgloss.Color

	// Arrival glow: background tints for rows whose event just
	// arrived. Bright immediately after arrival, dim while fading.
	GlowBrightBackground lipgloss.Color
	GlowDimBackground    lipgloss.Color
}

// StateColor returns the color for a connection lifecycle state.
// Unknown states return FaintText.
func (theme Theme) StateColor(state stream.State) lipgloss.Color {
	switch state {
	case stream.StateIdle:
		return theme.StateIdle
	case stream.StateConnecting:
		return theme.StateConnecting
	case stream.StateOpen:
		return theme.StateOpen
	case stream.StateReconnecting:
		return theme.StateReconnecting
	case stream.StateClosed:
		return theme.StateClosed
	default:
		return theme.FaintText
	}
}

// ChannelColor returns the accent color for a channel label. Labels
// may carry a provider suffix ("integration:github"); only the part
// before the colon selects the accent. Unknown channels return
// FaintText.
func (theme Theme) ChannelColor(channel string) lipgloss.Color {
	base, _, _ := strings.Cut(channel, ":")
	switch base {
	case "inbox":
		return theme.AccentInbox
	case "chat":
		return theme.AccentChat
	case "integration":
		return theme.AccentIntegration
	case "trigger":
		return theme.AccentTrigger
	default:
		return theme.FaintText
	}
}

// TaskStatusColor returns the color for an inbox task status.
// Unknown statuses return FaintText.
func (theme Theme) TaskStatusColor(status schema.TaskStatus) lipgloss.Color {
	switch status {
	case schema.TaskQueued:
		return theme.StatusQueued
	case schema.TaskRunning:
		return theme.StatusRunning
	case schema.TaskWaitingInput:
		return theme.StatusWaitingInput
	case schema.TaskCompleted:
		return theme.StatusCompleted
	case schema.TaskFailed:
		return theme.StatusFailed
	case schema.TaskCancelled:
		return theme.StatusCancelled
	default:
		return theme.FaintText
	}
}

// GlowBackground returns the background tint for a feed row with the
// given arrival glow intensity. The boolean is false when the glow has
// fully decayed and the row's regular background should be used.
func (theme Theme) GlowBackground(intensity float64) (lipgloss.Color, bool) {
	switch {
	case intensity >= 0.5:
		return theme.GlowBrightBackground, true
	case intensity > 0:
		return theme.GlowDimBackground, true
	default:
		return "", false
	}
}

// DarkTheme is the built-in dark-terminal color scheme. Designed for
// 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DarkTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),
	ErrorText:  lipgloss.Color("203"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	StateIdle:         lipgloss.Color("245"), // gray: nothing started yet
	StateConnecting:   lipgloss.Color("220"), // amber: dialing
	StateOpen:         lipgloss.Color("114"), // green: healthy
	StateReconnecting: lipgloss.Color("208"), // orange: backing off
	StateClosed:       lipgloss.Color("240"), // dim gray: done

	AccentInbox:       lipgloss.Color("75"),  // blue
	AccentChat:        lipgloss.Color("141"), // light purple
	AccentIntegration: lipgloss.Color("179"), // tan
	AccentTrigger:     lipgloss.Color("173"), // terracotta

	StatusQueued:       lipgloss.Color("245"), // gray
	StatusRunning:      lipgloss.Color("220"), // amber
	StatusWaitingInput: lipgloss.Color("208"), // orange: needs a human
	StatusCompleted:    lipgloss.Color("114"), // green
	StatusFailed:       lipgloss.Color("196"), // red
	StatusCancelled:    lipgloss.Color("240"), // dim gray

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	MatchForeground: lipgloss.Color("215"),

	LinkForeground: lipgloss.Color("75"),

	GlowBrightBackground: lipgloss.Color("58"),  // dark amber tint
	GlowDimBackground:    lipgloss.Color("237"), // near-background gray
}

// LightTheme adapts the palette for light terminal backgrounds. Same
// semantic mapping as DarkTheme with darker foregrounds and paler
// backgrounds.
var LightTheme = Theme{
	NormalText: lipgloss.Color("235"),
	FaintText:  lipgloss.Color("243"),
	ErrorText:  lipgloss.Color("160"),

	SelectedBackground: lipgloss.Color("254"),
	SelectedForeground: lipgloss.Color("16"),

	StateIdle:         lipgloss.Color("243"),
	StateConnecting:   lipgloss.Color("136"),
	StateOpen:         lipgloss.Color("28"),
	StateReconnecting: lipgloss.Color("166"),
	StateClosed:       lipgloss.Color("250"),

	AccentInbox:       lipgloss.Color("26"),
	AccentChat:        lipgloss.Color("91"),
	AccentIntegration: lipgloss.Color("94"),
	AccentTrigger:     lipgloss.Color("131"),

	StatusQueued:       lipgloss.Color("243"),
	StatusRunning:      lipgloss.Color("136"),
	StatusWaitingInput: lipgloss.Color("166"),
	StatusCompleted:    lipgloss.Color("28"),
	StatusFailed:       lipgloss.Color("160"),
	StatusCancelled:    lipgloss.Color("250"),

	HeaderForeground: lipgloss.Color("16"),
	BorderColor:      lipgloss.Color("250"),
	HelpText:         lipgloss.Color("245"),

	MatchForeground: lipgloss.Color("130"),

	LinkForeground: lipgloss.Color("26"),

	GlowBrightBackground: lipgloss.Color("222"), // pale amber tint
	GlowDimBackground:    lipgloss.Color("254"),
}

// DefaultTheme picks DarkTheme or LightTheme from the terminal's
// detected background color. Detection failure (no TTY, unknown
// terminal) reports a dark background, so DarkTheme is the effective
// default.
func DefaultTheme() Theme {
	if termenv.HasDarkBackground() {
		return DarkTheme
	}
	return LightTheme
}
