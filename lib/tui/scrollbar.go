// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderScrollbar produces a single-column scrollbar of the given
// height. The thumb indicates the visible region within the total
// content.
//
// The scrollbar is always fully rendered: track + thumb. When content
// fits within the visible area the thumb spans the entire height. The
// thumb brightens to HeaderForeground when the pane has keyboard
// focus, and stays at BorderColor otherwise.
func RenderScrollbar(theme Theme, height, totalRows, visibleRows, scrollOffset int, focused bool) string {
	if height <= 0 {
		return ""
	}

	thumbColor := theme.BorderColor
	if focused {
		thumbColor = theme.HeaderForeground
	}
	trackStyle := lipgloss.NewStyle().Foreground(theme.BorderColor)
	thumbStyle := lipgloss.NewStyle().Foreground(thumbColor)

	// Content fits: the whole column is thumb.
	if totalRows <= visibleRows || totalRows <= 0 {
		column := make([]string, height)
		for index := range column {
			column[index] = thumbStyle.Render("┃")
		}
		return strings.Join(column, "\n")
	}

	// Thumb size proportional to visible/total, minimum 1 row; thumb
	// position proportional to the scroll offset within the range.
	thumbSize := max(height*visibleRows/totalRows, 1)
	thumbStart := 0
	scrollableRange := totalRows - visibleRows
	trackRange := height - thumbSize
	if scrollableRange > 0 && trackRange > 0 {
		thumbStart = scrollOffset * trackRange / scrollableRange
	}
	if thumbStart+thumbSize > height {
		thumbStart = height - thumbSize
	}

	column := make([]string, height)
	for index := range column {
		if index >= thumbStart && index < thumbStart+thumbSize {
			column[index] = thumbStyle.Render("┃")
		} else {
			column[index] = trackStyle.Render("│")
		}
	}
	return strings.Join(column, "\n")
}
