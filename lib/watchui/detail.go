// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/foredeck-sh/foredeck/lib/tui"
)

// detailHeaderLines is the fixed number of lines consumed by the
// detail pane header. This is constant so the scrollable body never
// shifts vertically when switching rows.
//
// Layout:
//
//	Line 1: title
//	Line 2: channel  kind  resource  time  status
//	Line 3: separator
const detailHeaderLines = 3

// DetailPane wraps a bubbles viewport for scrollable event detail
// content. The pane has a fixed header (title + metadata,
// [detailHeaderLines] tall) rendered above the viewport, and a
// scrollable body below: rendered markdown for prose payloads,
// syntax-highlighted JSON for the rest.
type DetailPane struct {
	viewport viewport.Model
	theme    tui.Theme
	width    int
	height   int

	// Retained for re-rendering on resize. row is set by SetRow and
	// cleared by Clear. When hasRow is true, SetSize re-renders the
	// content at the new width so markdown word wrap adapts to
	// splitter changes.
	hasRow bool
	row    Row

	// Pre-rendered header string, set by render.
	header string
}

// NewDetailPane creates an empty detail pane.
func NewDetailPane(theme tui.Theme) DetailPane {
	return DetailPane{
		theme: theme,
	}
}

// bodyHeight returns the number of lines available for the scrollable
// viewport body (total height minus the fixed header).
func (pane DetailPane) bodyHeight() int {
	result := pane.height - detailHeaderLines
	if result < 1 {
		result = 1
	}
	return result
}

// contentWidth returns the usable width for text content (total width
// minus the left padding column and right scrollbar column).
func (pane DetailPane) contentWidth() int {
	return pane.width - 2
}

// SetSize updates the detail pane dimensions. If the width changed and
// there is content displayed, the content is re-rendered at the new
// width so markdown wrapping stays correct.
func (pane *DetailPane) SetSize(width, height int) {
	previousWidth := pane.width
	pane.width = width
	pane.height = height
	pane.viewport.Width = pane.contentWidth()
	pane.viewport.Height = pane.bodyHeight()

	if pane.hasRow && width != previousWidth {
		pane.rerender()
	}
}

// SetRow updates the detail pane with rendered content for a feed row
// and scrolls back to the top.
func (pane *DetailPane) SetRow(row Row) {
	pane.hasRow = true
	pane.row = row
	pane.render()
	pane.viewport.GotoTop()
}

// Clear removes the detail pane content.
func (pane *DetailPane) Clear() {
	pane.hasRow = false
	pane.row = Row{}
	pane.header = ""
	pane.viewport.SetContent("")
}

// render regenerates the header and viewport body from the current
// row at the current width.
func (pane *DetailPane) render() {
	if pane.width <= 0 {
		return
	}
	contentWidth := pane.contentWidth()
	pane.header = pane.renderHeader(contentWidth)

	var body string
	if pane.row.Markdown {
		body = tui.RenderMarkdown(pane.row.Body, pane.theme, contentWidth)
	} else {
		body = highlightJSON(pane.row.Body)
	}

	// Wrap to contentWidth so no line exceeds the viewport width.
	// Highlighted JSON can carry long string values on one line.
	body = lipgloss.NewStyle().Width(contentWidth).Render(body)
	pane.viewport.SetContent(body)
}

// rerender regenerates the content at the current width, preserving
// the scroll position as closely as possible.
func (pane *DetailPane) rerender() {
	previousOffset := pane.viewport.YOffset

	pane.render()

	// Restore scroll position, clamped to the new content height.
	maxOffset := pane.viewport.TotalLineCount() - pane.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if previousOffset > maxOffset {
		previousOffset = maxOffset
	}
	pane.viewport.SetYOffset(previousOffset)
}

// renderHeader produces the fixed header lines for the current row.
// Always exactly [detailHeaderLines] lines tall regardless of content.
func (pane DetailPane) renderHeader(contentWidth int) string {
	title := pane.row.Title
	if lipgloss.Width(title) > contentWidth {
		title = truncateString(title, contentWidth-1) + "…"
	}
	titleLine := lipgloss.NewStyle().
		Bold(true).
		Foreground(pane.theme.HeaderForeground).
		Render(title)

	channelPart := lipgloss.NewStyle().
		Foreground(pane.theme.ChannelColor(pane.row.Channel)).
		Render(pane.row.Channel)

	metaFields := []string{pane.row.Kind}
	if pane.row.Resource != "" {
		metaFields = append(metaFields, pane.row.Resource)
	}
	metaFields = append(metaFields, pane.row.Time.Format("15:04:05"))
	metaPart := lipgloss.NewStyle().
		Foreground(pane.theme.FaintText).
		Render(strings.Join(metaFields, "  "))

	metaLine := channelPart + "  " + metaPart
	if pane.row.Status != "" {
		statusPart := lipgloss.NewStyle().
			Foreground(statusTint(pane.theme, pane.row.Status)).
			Render(pane.row.Status)
		metaLine += "  " + statusPart
	}

	separator := lipgloss.NewStyle().
		Foreground(pane.theme.BorderColor).
		Render(strings.Repeat("─", contentWidth))

	return strings.Join([]string{titleLine, metaLine, separator}, "\n")
}

// View renders the detail pane as a docked panel with a fixed header,
// scrollable body, left padding, and a right scrollbar.
func (pane DetailPane) View(focused bool) string {
	contentWidth := pane.contentWidth()

	if !pane.hasRow {
		emptyStyle := lipgloss.NewStyle().
			Foreground(pane.theme.FaintText)

		contentStyle := lipgloss.NewStyle().
			PaddingLeft(1).
			Width(pane.width - 1).
			Height(pane.height)

		content := contentStyle.Render(
			lipgloss.Place(
				contentWidth, pane.height,
				lipgloss.Center, lipgloss.Center,
				emptyStyle.Render("Select an event to view details"),
			),
		)

		scrollbar := tui.RenderScrollbar(
			pane.theme, pane.height,
			0, pane.height, 0,
			focused,
		)
		return lipgloss.JoinHorizontal(lipgloss.Top, content, scrollbar)
	}

	// Build the content column as exactly pane.height lines: fixed
	// header (detailHeaderLines) + scrollable body (remainder).
	paddingStyle := lipgloss.NewStyle().
		PaddingLeft(1).
		Width(pane.width - 1)

	headerView := paddingStyle.Height(detailHeaderLines).Render(pane.header)
	bodyView := paddingStyle.Height(pane.bodyHeight()).Render(pane.viewport.View())
	content := headerView + "\n" + bodyView

	// Scrollbar: blank column for the header rows, actual scrollbar
	// for the body rows. This way the scrollbar only covers the
	// region it actually scrolls.
	headerColumn := lipgloss.NewStyle().
		Width(1).
		Height(detailHeaderLines).
		Render("")
	bodyScrollbar := tui.RenderScrollbar(
		pane.theme, pane.bodyHeight(),
		pane.viewport.TotalLineCount(), pane.viewport.Height, pane.viewport.YOffset,
		focused,
	)
	scrollColumn := headerColumn + "\n" + bodyScrollbar

	return lipgloss.JoinHorizontal(lipgloss.Top, content, scrollColumn)
}

// ScrollUp scrolls the detail pane up by half a page.
func (pane *DetailPane) ScrollUp() {
	pane.viewport.HalfViewUp()
}

// ScrollDown scrolls the detail pane down by half a page.
func (pane *DetailPane) ScrollDown() {
	pane.viewport.HalfViewDown()
}

// highlightJSON renders a JSON document with terminal syntax
// highlighting. Returns the input unchanged when highlighting fails
// (non-JSON payloads land here too and are shown as-is).
func highlightJSON(source string) string {
	var buffer bytes.Buffer
	if err := quick.Highlight(&buffer, source, "json", "terminal256", "monokai"); err != nil {
		return source
	}
	return strings.TrimRight(buffer.String(), "\n")
}
