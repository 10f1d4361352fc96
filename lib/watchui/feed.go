// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/foredeck-sh/foredeck/lib/schema"
	"github.com/foredeck-sh/foredeck/lib/tui"
)

// Column widths for the feed table. The title column fills remaining
// space; all others are fixed. Each width includes a one-column gap
// on the right.
const (
	columnWidthTime     = 9  // "15:04:05" + gap
	columnWidthChannel  = 13 // "integration" + gap (provider suffix truncated)
	columnWidthKind     = 13 // "task.created" + gap
	columnWidthResource = 11 // short ID + gap (e.g. "tsk-8f2a1c")
	columnWidthStatus   = 14 // "waiting_input" + gap
)

// rowRenderer handles the table-style rendering of feed rows within a
// given width.
type rowRenderer struct {
	theme tui.Theme
	width int
}

func newRowRenderer(theme tui.Theme, width int) rowRenderer {
	return rowRenderer{theme: theme, width: width}
}

// Render renders a single feed row as a formatted table row. The
// selected flag controls whether the row gets highlight styling.
// matchPositions contains rune indices into the row's filter text
// that matched the current fuzzy query; indices that fall within the
// title are highlighted, the rest land in fixed columns and are
// dropped.
//
// Row layout: indent + time + channel + kind + resource + status + title
//
//	14:02:31 inbox        task.created tsk-8f2a1c queued        Summarize contract renewals
//	14:02:45 chat         status       conv-31    thinking      turn thinking
func (renderer rowRenderer) Render(row Row, selected bool, matchPositions []int) string {
	titleWidth := renderer.width - 1 - columnWidthTime - columnWidthChannel -
		columnWidthKind - columnWidthResource - columnWidthStatus
	if titleWidth < 10 {
		titleWidth = 10
	}

	title := row.Title
	if lipgloss.Width(title) > titleWidth {
		title = truncateString(title, titleWidth-1) + "…"
	}

	if selected {
		return renderer.renderSelectedRow(row, title, matchPositions)
	}
	return renderer.renderNormalRow(row, title, matchPositions)
}

// renderNormalRow renders a row with per-column foreground colors and
// the default terminal background.
func (renderer rowRenderer) renderNormalRow(row Row, title string, matchPositions []int) string {
	timeStyle := lipgloss.NewStyle().
		Width(columnWidthTime).
		Foreground(renderer.theme.FaintText)

	channelStyle := lipgloss.NewStyle().
		Width(columnWidthChannel).
		Foreground(renderer.theme.ChannelColor(row.Channel))

	kindStyle := lipgloss.NewStyle().
		Width(columnWidthKind).
		Foreground(renderer.theme.NormalText)

	resourceStyle := lipgloss.NewStyle().
		Width(columnWidthResource).
		Foreground(renderer.theme.FaintText)

	statusStyle := lipgloss.NewStyle().
		Width(columnWidthStatus).
		Foreground(statusTint(renderer.theme, row.Status))

	titleStyle := lipgloss.NewStyle().
		Foreground(renderer.theme.NormalText)

	var titleRendered string
	if len(matchPositions) > 0 {
		highlightStyle := lipgloss.NewStyle().
			Foreground(renderer.theme.MatchForeground).
			Bold(true)
		titleRendered = highlightText(title, row.Title, matchPositions, titleStyle, highlightStyle)
	} else {
		titleRendered = titleStyle.Render(title)
	}

	line := " " +
		timeStyle.Render(row.Time.Format("15:04:05")) +
		channelStyle.Render(truncateCell(row.Channel, columnWidthChannel)) +
		kindStyle.Render(truncateCell(row.Kind, columnWidthKind)) +
		resourceStyle.Render(truncateCell(row.Resource, columnWidthResource)) +
		statusStyle.Render(truncateCell(row.Status, columnWidthStatus)) +
		titleRendered

	return lipgloss.NewStyle().Width(renderer.width).MaxWidth(renderer.width).Render(line)
}

// renderSelectedRow renders the selected row with a highlight
// background. All text uses the selected foreground color so the row
// reads as one solid bar.
func (renderer rowRenderer) renderSelectedRow(row Row, title string, matchPositions []int) string {
	baseStyle := lipgloss.NewStyle().
		Background(renderer.theme.SelectedBackground).
		Foreground(renderer.theme.SelectedForeground)

	var titleRendered string
	if len(matchPositions) > 0 {
		// The background is already the selection color, so a tint
		// would be subtle. Bold+underline makes matches pop against
		// the selection highlight.
		highlightStyle := baseStyle.Bold(true).Underline(true)
		titleRendered = highlightText(title, row.Title, matchPositions, baseStyle, highlightStyle)
	} else {
		titleRendered = baseStyle.Render(title)
	}

	line := " " +
		baseStyle.Width(columnWidthTime).Render(row.Time.Format("15:04:05")) +
		baseStyle.Width(columnWidthChannel).Render(truncateCell(row.Channel, columnWidthChannel)) +
		baseStyle.Width(columnWidthKind).Render(truncateCell(row.Kind, columnWidthKind)) +
		baseStyle.Width(columnWidthResource).Render(truncateCell(row.Resource, columnWidthResource)) +
		baseStyle.Width(columnWidthStatus).Render(truncateCell(row.Status, columnWidthStatus)) +
		titleRendered

	return baseStyle.Width(renderer.width).MaxWidth(renderer.width).Render(line)
}

// statusTint maps a row's status badge to a color. In-flight phases
// from chat, sync, and trigger payloads ("started", "thinking",
// "streaming", "tool_use") share the running color; everything else
// goes through the task status palette, which also covers the
// completed/failed values the other channels reuse.
func statusTint(theme tui.Theme, status string) lipgloss.Color {
	switch status {
	case "started", "thinking", "streaming", "tool_use":
		return theme.StatusRunning
	default:
		return theme.TaskStatusColor(schema.TaskStatus(status))
	}
}

// highlightText renders a display string with character-level
// highlighting at the given rune positions. Positions index into the
// original (untruncated) text; positions past the display string or
// past the original length are dropped. Consecutive runs of
// same-style characters are batched into a single Render call to keep
// ANSI output compact.
func highlightText(display string, original string, positions []int, baseStyle, highlightStyle lipgloss.Style) string {
	if len(positions) == 0 {
		return baseStyle.Render(display)
	}

	positionSet := make(map[int]bool, len(positions))
	for _, position := range positions {
		positionSet[position] = true
	}

	originalLength := len([]rune(original))
	displayRunes := []rune(display)

	var result strings.Builder
	runStart := 0
	isHighlighted := runStart < originalLength && positionSet[0]

	for index := 1; index <= len(displayRunes); index++ {
		currentHighlighted := index < originalLength && positionSet[index]
		if currentHighlighted != isHighlighted || index == len(displayRunes) {
			chunk := string(displayRunes[runStart:index])
			if isHighlighted {
				result.WriteString(highlightStyle.Render(chunk))
			} else {
				result.WriteString(baseStyle.Render(chunk))
			}
			runStart = index
			isHighlighted = currentHighlighted
		}
	}

	return result.String()
}

// truncateCell fits text into a fixed column, keeping a one-column
// gap on the right. Overlong values end with an ellipsis.
func truncateCell(text string, width int) string {
	if lipgloss.Width(text) <= width-1 {
		return text
	}
	return truncateString(text, width-2) + "…"
}

// truncateString truncates a string to maxWidth visual characters.
// Handles multi-byte characters correctly via lipgloss width
// measurement.
func truncateString(text string, maxWidth int) string {
	if lipgloss.Width(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for length := len(runes) - 1; length >= 0; length-- {
		candidate := string(runes[:length])
		if lipgloss.Width(candidate) <= maxWidth {
			return candidate
		}
	}
	return ""
}
