// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/foredeck-sh/foredeck/lib/stream"
	"github.com/foredeck-sh/foredeck/lib/tui"
)

// View implements tea.Model. Layout, top to bottom: an optional
// filter line, the two-pane content area (feed | detail), the status
// bar rule with per-channel connection segments, and a footer that
// shows either key hints or the latest log record.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	var sections []string

	// Top chrome: the filter line appears only while filtering so the
	// feed gets the full height otherwise.
	if model.filterLineVisible() {
		sections = append(sections, model.renderFilterLine())
	}

	feedView := model.renderFeedPane()
	divider := model.renderDivider()
	detailView := model.detail.View(model.focus == FocusDetail)
	contentArea := lipgloss.JoinHorizontal(lipgloss.Top, feedView, divider, detailView)
	sections = append(sections, contentArea)

	sections = append(sections, model.renderStatusBar())
	sections = append(sections, model.renderFooter())

	return strings.Join(sections, "\n")
}

// renderFilterLine renders the filter input with a match count suffix
// once a query is active.
func (model Model) renderFilterLine() string {
	line := model.filter.View()
	if len(model.filterPattern()) > 0 {
		countStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
		line += countStyle.Render(fmt.Sprintf("  %d/%d", len(model.visible), len(model.rows)))
	}
	return lipgloss.NewStyle().Width(model.width).MaxWidth(model.width).Render(line)
}

// renderFeedPane renders the event feed with proper column layout.
func (model Model) renderFeedPane() string {
	// Always reserve 1 column for the scrollbar so content stays at a
	// fixed position regardless of focus state.
	focused := model.focus == FocusFeed
	rowWidth := model.feedWidth() - 1

	visible := model.visibleHeight()
	if visible < 0 {
		visible = 0
	}

	if len(model.visible) == 0 {
		return model.renderFeedEmpty(rowWidth, visible, focused)
	}

	renderer := newRowRenderer(model.theme, rowWidth)
	now := model.clock.Now()

	var rows []string
	for index := model.scrollOffset; index < model.scrollOffset+visible && index < len(model.visible); index++ {
		seq := model.visible[index]
		selected := index == model.cursor
		row := renderer.Render(model.rowBySeq(seq), selected, model.matches[seq])
		// Arrival glow tint for fresh rows (selection highlight takes
		// priority so we skip the tint there).
		if !selected {
			intensity := model.glow.Intensity(strconv.Itoa(seq), now)
			if tint, lit := model.theme.GlowBackground(intensity); lit {
				row = lipgloss.NewStyle().
					Background(tint).
					Width(rowWidth).
					MaxWidth(rowWidth).
					Render(row)
			}
		}
		rows = append(rows, row)
	}

	// Pad empty rows.
	rendered := len(rows)
	if rendered < visible {
		emptyStyle := lipgloss.NewStyle().Width(rowWidth)
		for padding := rendered; padding < visible; padding++ {
			rows = append(rows, emptyStyle.Render(""))
		}
	}

	scrollbar := tui.RenderScrollbar(
		model.theme, visible,
		len(model.visible), visible, model.scrollOffset,
		focused,
	)

	contentStyle := lipgloss.NewStyle().
		Width(rowWidth).
		Height(visible)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		contentStyle.Render(strings.Join(rows, "\n")),
		scrollbar,
	)
}

// renderFeedEmpty renders the feed pane placeholder when no rows are
// visible: either nothing has arrived yet, or the filter excluded
// everything.
func (model Model) renderFeedEmpty(rowWidth, visible int, focused bool) string {
	text := "No events yet"
	if len(model.rows) > 0 {
		text = "No events match the filter"
	}

	messageStyle := lipgloss.NewStyle().
		Foreground(model.theme.FaintText)

	content := lipgloss.Place(
		rowWidth, visible,
		lipgloss.Center, lipgloss.Center,
		messageStyle.Render(text),
	)

	scrollbar := tui.RenderScrollbar(
		model.theme, visible,
		0, visible, 0,
		focused,
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, content, scrollbar)
}

// renderDivider renders the single-column vertical divider between
// the feed and detail panes.
func (model Model) renderDivider() string {
	visible := model.visibleHeight()
	if visible < 0 {
		visible = 0
	}

	dividerStyle := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor)

	lines := make([]string, visible)
	for index := range lines {
		lines[index] = "│"
	}

	return dividerStyle.Width(1).Height(visible).Render(strings.Join(lines, "\n"))
}

// renderStatusBar renders the per-channel connection segments embedded
// in a horizontal rule, btop style, with event counts on the right.
//
// Example: ─── ● inbox ─── ◐ chat 3s ─── ● integration:github ─── 128 events ─
func (model Model) renderStatusBar() string {
	separatorStyle := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor)
	statsStyle := lipgloss.NewStyle().
		Foreground(model.theme.FaintText)

	sep := separatorStyle.Render("─")

	// Build the left portion: ─── segment ─── segment ─
	leftParts := sep + sep + sep // Leading "───"
	cursor := 3

	now := model.clock.Now()
	for index, status := range model.statuses {
		leftParts += " "
		cursor++

		segment, segmentWidth := model.renderChannelSegment(status, now)
		leftParts += segment
		cursor += segmentWidth

		leftParts += " "
		cursor++

		sepCount := 3
		if index == len(model.statuses)-1 {
			sepCount = 1
		}
		for range sepCount {
			leftParts += sep
			cursor++
		}
	}

	// Event counts on the right. With an active filter the count shows
	// matches over retained total.
	statsText := fmt.Sprintf("%d events", len(model.rows))
	if len(model.visible) != len(model.rows) {
		statsText = fmt.Sprintf("%d/%d events", len(model.visible), len(model.rows))
	}
	statsRendered := statsStyle.Render(statsText)
	statsWidth := lipgloss.Width(statsText)

	// Fill the gap between segments and stats with separator chars,
	// leaving 1 space on each side of the stats.
	rightPortion := " " + statsRendered + " " + sep
	rightWidth := 1 + statsWidth + 1 + 1

	fillCount := model.width - cursor - rightWidth
	if fillCount < 1 {
		fillCount = 1
	}
	fill := ""
	for range fillCount {
		fill += sep
	}

	return leftParts + fill + rightPortion
}

// renderChannelSegment renders one status bar segment: state icon,
// channel label, and a reconnect countdown when one is pending.
// Returns the rendered segment and its visual width.
func (model Model) renderChannelSegment(status ChannelStatus, now time.Time) (string, int) {
	stateStyle := lipgloss.NewStyle().
		Foreground(model.theme.StateColor(status.State))
	labelStyle := lipgloss.NewStyle().
		Foreground(model.theme.ChannelColor(status.Label))

	icon := stateIcon(status.State)
	text := stateStyle.Render(icon) + " " + labelStyle.Render(status.Label)
	width := lipgloss.Width(icon) + 1 + lipgloss.Width(status.Label)

	if status.State == stream.StateReconnecting && !status.RetryAt.IsZero() {
		remaining := status.RetryAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		countdown := fmt.Sprintf("%ds", int(remaining.Round(time.Second).Seconds()))
		text += " " + stateStyle.Render(countdown)
		width += 1 + lipgloss.Width(countdown)
	}

	return text, width
}

// stateIcon returns the single-character connection indicator for a
// stream state: filled while healthy, half-filled while dialing or
// waiting to retry, empty otherwise.
func stateIcon(state stream.State) string {
	switch state {
	case stream.StateOpen:
		return "●"
	case stream.StateConnecting, stream.StateReconnecting:
		return "◐"
	default:
		return "○"
	}
}

// renderFooter renders the bottom line: the latest log record while
// one is showing, the help bar otherwise.
func (model Model) renderFooter() string {
	if model.logLine != "" {
		color := model.theme.FaintText
		switch {
		case model.logLevel >= slog.LevelError:
			color = model.theme.ErrorText
		case model.logLevel >= slog.LevelWarn:
			color = model.theme.StateConnecting
		}
		lineStyle := lipgloss.NewStyle().Foreground(color)
		return lipgloss.NewStyle().
			MaxWidth(model.width).
			Render(lineStyle.Render(" " + model.logLine))
	}
	return model.renderHelp()
}

// renderHelp renders the bottom help bar with key hints and position.
func (model Model) renderHelp() string {
	style := lipgloss.NewStyle().Foreground(model.theme.HelpText)

	focusIndicator := "FEED"
	switch model.focus {
	case FocusDetail:
		focusIndicator = "DETAIL"
	case FocusFilter:
		focusIndicator = "FILTER"
	}

	help := fmt.Sprintf(" [%s] q quit  ↑↓ navigate  Tab focus  / filter  g/G oldest/newest  ]/[ resize",
		focusIndicator)

	if len(model.visible) > model.visibleHeight() {
		position := ""
		if model.scrollOffset == 0 {
			position = "top"
		} else if model.scrollOffset+model.visibleHeight() >= len(model.visible) {
			position = "bottom"
		} else {
			percent := float64(model.scrollOffset) / float64(len(model.visible)-model.visibleHeight()) * 100
			position = fmt.Sprintf("%d%%", int(percent))
		}
		help += fmt.Sprintf("  [%s] %d/%d", position, model.cursor+1, len(model.visible))
	} else if len(model.visible) > 0 {
		help += fmt.Sprintf("  %d/%d", model.cursor+1, len(model.visible))
	}

	// A paused feed is easy to forget about: call it out.
	if !model.follow && len(model.visible) > 0 {
		noticeStyle := lipgloss.NewStyle().
			Foreground(model.theme.StateConnecting).
			Bold(true)
		help += "  " + noticeStyle.Render("follow off")
	}

	return style.Render(help)
}
