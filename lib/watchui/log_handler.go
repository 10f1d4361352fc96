// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logMsg delivers a slog record to the model for display in the
// footer. Only records at or above the handler's configured level are
// delivered.
type logMsg struct {
	// summary is the human-readable one-line message for the footer.
	summary string

	// level is the slog level for styling (warn vs error).
	level slog.Level
}

// logFadeMsg clears the footer log line after logFadeDelay. The seq
// field ties the fade to the record that scheduled it, so an old fade
// never clears a newer record.
type logFadeMsg struct {
	seq int
}

// logFadeDelay is how long log records stay visible in the footer
// before it returns to the keyboard help line.
const logFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that routes log records into a running
// bubbletea program as messages, so stream diagnostics surface in the
// footer instead of corrupting the alternate screen.
//
// The handler is created before the program exists: create it, build
// the logger, hand the logger to the subscriptions, then call
// SetProgram once tea.NewProgram has run. Records arriving before
// SetProgram is called are dropped.
//
// All handlers derived via WithAttrs/WithGroup share the same program
// pointer, so a single SetProgram call propagates to every derived
// handler.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
	groups  []string
}

// NewLogHandler creates a handler that delivers log records at or
// above the given level to the bubbletea program. Call SetProgram
// after creating the tea.Program.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:   level,
		program: &atomic.Pointer[tea.Program]{},
	}
}

// SetProgram sets the bubbletea program that receives log messages.
// Safe to call from any goroutine. Propagates to all handlers derived
// from this one via WithAttrs/WithGroup.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

// Enabled reports whether the handler is interested in records at the
// given level.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record and sends it to the bubbletea program.
// If the program has not been set yet, the record is silently dropped.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}
	program.Send(logMsg{
		summary: recordSummary(handler.attrs, record),
		level:   record.Level,
	})
	return nil
}

// WithAttrs returns a new handler with the given attributes appended.
// The derived handler shares the same atomic program pointer, so
// SetProgram on the root handler propagates automatically.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append(slices.Clone(handler.attrs), attrs...),
		groups:  slices.Clone(handler.groups),
	}
}

// WithGroup returns a new handler with the given group name appended.
// Groups are tracked for handler identity but not reflected in the
// one-line summary.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   slices.Clone(handler.attrs),
		groups:  append(slices.Clone(handler.groups), name),
	}
}

// recordSummary builds the one-line footer text for a log record:
// "message (key=value, ...)" with handler-level attrs before
// record-level attrs.
func recordSummary(attrs []slog.Attr, record slog.Record) string {
	summary := record.Message
	var attrParts []string
	for _, attr := range attrs {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
		return true
	})
	if len(attrParts) > 0 {
		summary += " (" + strings.Join(attrParts, ", ") + ")"
	}
	return summary
}
