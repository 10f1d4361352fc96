// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/foredeck-sh/foredeck/lib/clock"
	"github.com/foredeck-sh/foredeck/lib/stream"
	"github.com/foredeck-sh/foredeck/lib/tui"
)

// EventMsg delivers one feed row to the model. Subscription callbacks
// run on their stream's dispatch goroutine and hand rows to the UI
// with program.Send(EventMsg{Row: row}).
type EventMsg struct {
	Row Row
}

// StateMsg reports a connection lifecycle transition for one channel.
// Backoff is the reconnect delay and is meaningful only when State is
// StateReconnecting; the model turns it into a countdown deadline.
type StateMsg struct {
	Channel string
	State   stream.State
	Backoff time.Duration
}

// glowTickMsg drives the arrival-glow fade while any row is lit.
type glowTickMsg struct{}

// retryTickMsg re-renders the status bar each second while a channel
// is counting down to a reconnect attempt.
type retryTickMsg struct{}

// ChannelStatus is one status bar segment: a channel label with its
// current connection state. RetryAt is the deadline of the next
// reconnect attempt, zero unless State is StateReconnecting.
type ChannelStatus struct {
	Label   string
	State   stream.State
	RetryAt time.Time
}

// FocusRegion identifies which UI region receives keyboard input.
type FocusRegion int

const (
	// FocusFeed routes navigation keys to the event feed.
	FocusFeed FocusRegion = iota

	// FocusDetail routes navigation keys to the detail pane viewport.
	FocusDetail

	// FocusFilter routes all input to the filter text field.
	FocusFilter
)

const (
	// defaultMaxRows caps in-memory feed retention. Oldest rows are
	// dropped past the cap; the on-disk journal is the durable record.
	defaultMaxRows = 5000

	splitRatioDefault = 0.6
	splitRatioMin     = 0.3
	splitRatioMax     = 0.8
	splitRatioStep    = 0.05
)

// Config carries the watcher's construction parameters.
type Config struct {
	// Channels lists the status bar segments in display order, using
	// the labels StateMsg reports ("inbox", "integration:github").
	// Channels that later report state without being listed are
	// appended at the end.
	Channels []string

	// Theme overrides the color scheme; nil means tui.DefaultTheme().
	Theme *tui.Theme

	// Clock overrides the time source for arrival stamps, glow decay,
	// and retry countdowns; nil means the system clock.
	Clock clock.Clock

	// MaxRows overrides feed retention; 0 means defaultMaxRows.
	MaxRows int
}

// Model is the bubbletea model for the event watcher. Create with New,
// then run under tea.NewProgram and feed it EventMsg/StateMsg via
// Program.Send.
type Model struct {
	theme tui.Theme
	clock clock.Clock
	keys  KeyMap

	// rows holds retained feed rows, oldest first. Row identity is a
	// sequence number: rows[i] has sequence baseSeq+i, stable across
	// retention trims.
	rows    []Row
	baseSeq int
	maxRows int

	// visible holds the sequence numbers of rows that pass the filter,
	// oldest first. matches holds fuzzy match positions per sequence,
	// populated only while a filter is active.
	visible []int
	matches map[int][]int

	// cursor indexes into visible. follow pins the cursor to the
	// newest row as events arrive; moving off the last row releases
	// it, and navigating back to the last row re-engages it.
	cursor       int
	scrollOffset int
	follow       bool

	focus      FocusRegion
	splitRatio float64

	filter textinput.Model
	slab   *util.Slab

	detail DetailPane
	// detailSeq is the sequence of the row in the detail pane, -1 when
	// the pane is empty.
	detailSeq int

	statuses []ChannelStatus

	glow         *tui.GlowTracker
	glowRunning  bool
	retryRunning bool

	// Footer log line state. logSeq invalidates pending fades when a
	// newer record arrives.
	logLine  string
	logLevel slog.Level
	logSeq   int

	width  int
	height int
	ready  bool
}

// New creates a watcher model with idle status segments for the given
// channels.
func New(cfg Config) Model {
	theme := tui.DefaultTheme()
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}
	timeSource := cfg.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "filter by title, channel, kind, resource"
	input.CharLimit = 120
	input.PromptStyle = lipgloss.NewStyle().Foreground(theme.HeaderForeground)
	input.PlaceholderStyle = lipgloss.NewStyle().Foreground(theme.FaintText)

	statuses := make([]ChannelStatus, 0, len(cfg.Channels))
	for _, label := range cfg.Channels {
		statuses = append(statuses, ChannelStatus{Label: label, State: stream.StateIdle})
	}

	return Model{
		theme:      theme,
		clock:      timeSource,
		keys:       DefaultKeyMap,
		maxRows:    maxRows,
		matches:    make(map[int][]int),
		follow:     true,
		splitRatio: splitRatioDefault,
		filter:     input,
		slab:       tui.NewSlab(),
		detail:     NewDetailPane(theme),
		detailSeq:  -1,
		statuses:   statuses,
		glow:       tui.NewGlowTracker(),
	}
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model. Routes keyboard events based on the
// current focus region and handles arriving events, state changes,
// and timer ticks.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.updatePaneSizes()
		model.ensureCursorVisible()
		return model, nil

	case EventMsg:
		return model.handleEvent(message)

	case StateMsg:
		return model.handleState(message)

	case glowTickMsg:
		if model.glow.Lit(model.clock.Now()) {
			return model, scheduleGlowTick()
		}
		model.glowRunning = false
		return model, nil

	case retryTickMsg:
		if model.anyReconnecting() {
			return model, scheduleRetryTick()
		}
		model.retryRunning = false
		return model, nil

	case logMsg:
		model.logLine = message.summary
		model.logLevel = message.level
		model.logSeq++
		return model, scheduleLogFade(model.logSeq)

	case logFadeMsg:
		if message.seq == model.logSeq {
			model.logLine = ""
		}
		return model, nil

	case tea.KeyMsg:
		if model.focus == FocusFilter {
			return model.handleFilterKey(message)
		}
		return model.handleKey(message)

	case tea.MouseMsg:
		return model.handleMouse(message)
	}

	// Everything else (cursor blink ticks) belongs to the filter input.
	var command tea.Cmd
	model.filter, command = model.filter.Update(message)
	return model, command
}

// handleEvent appends an arriving row, keeps the filter and follow
// semantics consistent, and starts the glow ticker when needed.
func (model Model) handleEvent(message EventMsg) (tea.Model, tea.Cmd) {
	seq := model.baseSeq + len(model.rows)
	model.rows = append(model.rows, message.Row)
	model.glow.Ignite(strconv.Itoa(seq), model.clock.Now())

	include := true
	if pattern := model.filterPattern(); len(pattern) > 0 {
		result := tui.FuzzyMatch(message.Row.FilterText(), pattern, model.slab)
		if result.Score > 0 {
			model.matches[seq] = result.Positions
		} else {
			include = false
		}
	}
	if include {
		model.visible = append(model.visible, seq)
		if model.follow {
			model.cursor = len(model.visible) - 1
		}
	}

	model.trimRows()
	model.ensureCursorVisible()
	model.syncDetail()

	if !model.glowRunning {
		model.glowRunning = true
		return model, scheduleGlowTick()
	}
	return model, nil
}

// handleState updates a channel's status bar segment and starts the
// countdown ticker when a reconnect is pending.
func (model Model) handleState(message StateMsg) (tea.Model, tea.Cmd) {
	var retryAt time.Time
	if message.State == stream.StateReconnecting {
		retryAt = model.clock.Now().Add(message.Backoff)
	}

	found := false
	for index := range model.statuses {
		if model.statuses[index].Label == message.Channel {
			model.statuses[index].State = message.State
			model.statuses[index].RetryAt = retryAt
			found = true
			break
		}
	}
	if !found {
		model.statuses = append(model.statuses, ChannelStatus{
			Label:   message.Channel,
			State:   message.State,
			RetryAt: retryAt,
		})
	}

	if message.State == stream.StateReconnecting && !model.retryRunning {
		model.retryRunning = true
		return model, scheduleRetryTick()
	}
	return model, nil
}

// handleKey processes keystrokes when the feed or detail pane has
// focus.
func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.FocusToggle):
		if model.focus == FocusFeed {
			model.focus = FocusDetail
		} else {
			model.focus = FocusFeed
		}
		return model, nil

	case key.Matches(message, model.keys.FilterActivate):
		model.focus = FocusFilter
		command := model.filter.Focus()
		model.updatePaneSizes()
		model.ensureCursorVisible()
		return model, command

	case key.Matches(message, model.keys.FilterClear):
		if model.filter.Value() != "" {
			model.filter.SetValue("")
			model.applyFilter()
			model.updatePaneSizes()
		}
		return model, nil

	case key.Matches(message, model.keys.SplitGrow):
		model.splitRatio = min(model.splitRatio+splitRatioStep, splitRatioMax)
		model.updatePaneSizes()
		return model, nil

	case key.Matches(message, model.keys.SplitShrink):
		model.splitRatio = max(model.splitRatio-splitRatioStep, splitRatioMin)
		model.updatePaneSizes()
		return model, nil
	}

	if model.focus == FocusDetail {
		return model.handleDetailKey(message)
	}
	return model.handleFeedKey(message)
}

// handleFeedKey processes navigation keystrokes for the feed pane.
func (model Model) handleFeedKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.moveCursor(-1)
	case key.Matches(message, model.keys.Down):
		model.moveCursor(1)
	case key.Matches(message, model.keys.PageUp):
		model.moveCursor(-model.halfPage())
	case key.Matches(message, model.keys.PageDown):
		model.moveCursor(model.halfPage())
	case key.Matches(message, model.keys.Home):
		model.setCursor(0)
	case key.Matches(message, model.keys.End):
		model.setCursor(len(model.visible) - 1)
	}
	return model, nil
}

// handleDetailKey processes navigation keystrokes for the detail pane.
func (model Model) handleDetailKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.detail.viewport.LineUp(1)
	case key.Matches(message, model.keys.Down):
		model.detail.viewport.LineDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.detail.ScrollUp()
	case key.Matches(message, model.keys.PageDown):
		model.detail.ScrollDown()
	case key.Matches(message, model.keys.Home):
		model.detail.viewport.GotoTop()
	case key.Matches(message, model.keys.End):
		model.detail.viewport.GotoBottom()
	}
	return model, nil
}

// handleFilterKey processes keystrokes while the filter input has
// focus. Regular characters go to the input; only a few bindings
// escape it.
func (model Model) handleFilterKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		// ctrl+c always quits. 'q' is a regular character here, and
		// falls through to the input below.
		if message.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}

	case key.Matches(message, model.keys.FilterClear):
		// Esc: if there's filter text, clear it; if already empty,
		// exit filter mode.
		if model.filter.Value() != "" {
			model.filter.SetValue("")
			model.applyFilter()
		} else {
			model.filter.Blur()
			model.focus = FocusFeed
		}
		model.updatePaneSizes()
		return model, nil

	case message.Type == tea.KeyEnter:
		// Confirm the filter and return focus to the feed.
		model.filter.Blur()
		model.focus = FocusFeed
		model.updatePaneSizes()
		return model, nil
	}

	before := model.filter.Value()
	var command tea.Cmd
	model.filter, command = model.filter.Update(message)
	if model.filter.Value() != before {
		model.applyFilter()
	}
	return model, command
}

// handleMouse processes wheel scrolling and click selection. The feed
// pane owns columns left of the divider, the detail pane the rest.
func (model Model) handleMouse(message tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch message.Button {
	case tea.MouseButtonWheelUp:
		if message.X < model.feedWidth() {
			model.moveCursor(-1)
		} else {
			model.detail.viewport.LineUp(3)
		}

	case tea.MouseButtonWheelDown:
		if message.X < model.feedWidth() {
			model.moveCursor(1)
		} else {
			model.detail.viewport.LineDown(3)
		}

	case tea.MouseButtonLeft:
		if message.Action != tea.MouseActionPress {
			break
		}
		if message.X < model.feedWidth() {
			model.focus = FocusFeed
			row := model.scrollOffset + (message.Y - model.contentStartY())
			if message.Y >= model.contentStartY() && row < len(model.visible) {
				model.setCursor(row)
			}
		} else {
			model.focus = FocusDetail
		}
	}
	return model, nil
}

// moveCursor moves the feed cursor by delta rows, clamped to the
// visible range.
func (model *Model) moveCursor(delta int) {
	model.setCursor(model.cursor + delta)
}

// setCursor positions the feed cursor, re-deriving follow mode: the
// cursor resting on the newest row means the feed follows arrivals.
func (model *Model) setCursor(position int) {
	if len(model.visible) == 0 {
		return
	}
	if position < 0 {
		position = 0
	}
	if position >= len(model.visible) {
		position = len(model.visible) - 1
	}
	model.cursor = position
	model.follow = model.cursor == len(model.visible)-1
	model.ensureCursorVisible()
	model.syncDetail()
}

// halfPage returns the page-scroll stride for ctrl+u/ctrl+d.
func (model Model) halfPage() int {
	half := model.visibleHeight() / 2
	if half < 1 {
		half = 1
	}
	return half
}

// filterPattern returns the active filter query as runes, nil when
// the filter is empty.
func (model Model) filterPattern() []rune {
	value := strings.TrimSpace(model.filter.Value())
	if value == "" {
		return nil
	}
	return []rune(value)
}

// applyFilter rebuilds the visible row set and match positions from
// the current filter query, keeping the selection on the same row
// when it survives.
func (model *Model) applyFilter() {
	selected := -1
	if model.cursor < len(model.visible) {
		selected = model.visible[model.cursor]
	}

	model.visible = model.visible[:0]
	clear(model.matches)
	pattern := model.filterPattern()
	for index := range model.rows {
		seq := model.baseSeq + index
		if len(pattern) == 0 {
			model.visible = append(model.visible, seq)
			continue
		}
		result := tui.FuzzyMatch(model.rows[index].FilterText(), pattern, model.slab)
		if result.Score > 0 {
			model.matches[seq] = result.Positions
			model.visible = append(model.visible, seq)
		}
	}

	// Follow pins to the newest match. Otherwise restore the previous
	// selection if it survived the filter, falling back to the newest.
	model.cursor = len(model.visible) - 1
	if !model.follow && selected >= 0 {
		for index, seq := range model.visible {
			if seq == selected {
				model.cursor = index
				break
			}
		}
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
	model.ensureCursorVisible()
	model.syncDetail()
}

// trimRows drops the oldest rows once retention exceeds the cap.
// Sequence numbers keep visible entries, match positions, and glow
// keys stable across trims.
func (model *Model) trimRows() {
	excess := len(model.rows) - model.maxRows
	if excess <= 0 {
		return
	}
	copy(model.rows, model.rows[excess:])
	model.rows = model.rows[:len(model.rows)-excess]
	model.baseSeq += excess

	dropped := 0
	for dropped < len(model.visible) && model.visible[dropped] < model.baseSeq {
		dropped++
	}
	if dropped > 0 {
		copy(model.visible, model.visible[dropped:])
		model.visible = model.visible[:len(model.visible)-dropped]
		model.cursor = max(model.cursor-dropped, 0)
		model.scrollOffset = max(model.scrollOffset-dropped, 0)
	}

	for seq := range model.matches {
		if seq < model.baseSeq {
			delete(model.matches, seq)
		}
	}
	if model.detailSeq >= 0 && model.detailSeq < model.baseSeq {
		model.detailSeq = -1
		model.detail.Clear()
	}
}

// rowBySeq returns the retained row with the given sequence number.
func (model Model) rowBySeq(seq int) Row {
	return model.rows[seq-model.baseSeq]
}

// syncDetail keeps the detail pane showing the selected row.
func (model *Model) syncDetail() {
	if len(model.visible) == 0 {
		if model.detailSeq != -1 {
			model.detailSeq = -1
			model.detail.Clear()
		}
		return
	}
	if model.cursor >= len(model.visible) {
		model.cursor = len(model.visible) - 1
	}
	seq := model.visible[model.cursor]
	if seq == model.detailSeq {
		return
	}
	model.detailSeq = seq
	model.detail.SetRow(model.rowBySeq(seq))
}

// anyReconnecting reports whether any channel is counting down to a
// reconnect attempt.
func (model Model) anyReconnecting() bool {
	for _, status := range model.statuses {
		if status.State == stream.StateReconnecting {
			return true
		}
	}
	return false
}

// updatePaneSizes recomputes the detail pane and filter input widths
// after a resize, a splitter adjustment, or a filter line appearing.
func (model *Model) updatePaneSizes() {
	if !model.ready {
		return
	}
	contentHeight := max(model.visibleHeight(), 0)
	detailWidth := model.width - model.feedWidth() - 1
	if detailWidth < 10 {
		detailWidth = 10
	}
	model.detail.SetSize(detailWidth, contentHeight)
	model.filter.Width = max(model.width-20, 10)
}

// feedWidth returns the width of the feed pane in columns.
func (model Model) feedWidth() int {
	return int(float64(model.width) * model.splitRatio)
}

// filterLineVisible reports whether the filter line occupies the top
// chrome row: while typing, and while a confirmed query is active.
func (model Model) filterLineVisible() bool {
	return model.focus == FocusFilter || model.filter.Value() != ""
}

// contentStartY returns the first content row: 0 normally, 1 when the
// filter line is shown.
func (model Model) contentStartY() int {
	if model.filterLineVisible() {
		return 1
	}
	return 0
}

// visibleHeight returns the number of feed rows that fit between the
// chrome elements: the optional filter line above, the status bar and
// footer below.
func (model Model) visibleHeight() int {
	return model.height - model.contentStartY() - 2
}

// ensureCursorVisible adjusts scrollOffset so the cursor stays within
// the visible window.
func (model *Model) ensureCursorVisible() {
	visible := model.visibleHeight()
	if visible <= 0 {
		return
	}

	// Clamp scrollOffset so we never scroll past the end. This handles
	// filter changes where the new set is shorter than the old offset.
	maxOffset := len(model.visible) - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if model.scrollOffset > maxOffset {
		model.scrollOffset = maxOffset
	}

	if model.cursor < model.scrollOffset {
		model.scrollOffset = model.cursor
	}
	if model.cursor >= model.scrollOffset+visible {
		model.scrollOffset = model.cursor - visible + 1
	}
}

// scheduleGlowTick emits a glowTickMsg after the glow animation
// interval.
func scheduleGlowTick() tea.Cmd {
	return tea.Tick(tui.GlowTickInterval, func(time.Time) tea.Msg {
		return glowTickMsg{}
	})
}

// scheduleRetryTick emits a retryTickMsg after one second.
func scheduleRetryTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return retryTickMsg{}
	})
}

// scheduleLogFade emits a logFadeMsg for the given record sequence
// after the fade delay.
func scheduleLogFade(seq int) tea.Cmd {
	return tea.Tick(logFadeDelay, func(time.Time) tea.Msg {
		return logFadeMsg{seq: seq}
	})
}
