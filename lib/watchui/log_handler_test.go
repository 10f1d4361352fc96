// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestLogHandlerEnabled(t *testing.T) {
	handler := NewLogHandler(slog.LevelInfo)

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be below the info threshold")
	}
	if !handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should pass the info threshold")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass the info threshold")
	}
}

func TestLogHandlerNoProgram(t *testing.T) {
	handler := NewLogHandler(slog.LevelInfo)

	// Records arriving before SetProgram are dropped, not an error.
	record := slog.NewRecord(time.Now(), slog.LevelWarn, "early record", 0)
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Errorf("Handle without a program should drop silently, got %v", err)
	}
}

func TestRecordSummary(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelWarn, "reconnecting", 0)
	record.AddAttrs(slog.String("channel", "inbox"), slog.Int("attempt", 3))

	got := recordSummary([]slog.Attr{slog.String("component", "feed")}, record)
	want := "reconnecting (component=feed, channel=inbox, attempt=3)"
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

func TestRecordSummaryNoAttrs(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "stream open", 0)

	got := recordSummary(nil, record)
	if got != "stream open" {
		t.Errorf("summary = %q, want bare message", got)
	}
}

func TestLogHandlerDerivedSharesProgram(t *testing.T) {
	root := NewLogHandler(slog.LevelInfo)

	withAttrs, ok := root.WithAttrs([]slog.Attr{slog.String("channel", "chat")}).(*LogHandler)
	if !ok {
		t.Fatal("WithAttrs should return a *LogHandler")
	}
	if withAttrs.program != root.program {
		t.Error("derived handler should share the root's program pointer")
	}

	withGroup, ok := root.WithGroup("stream").(*LogHandler)
	if !ok {
		t.Fatal("WithGroup should return a *LogHandler")
	}
	if withGroup.program != root.program {
		t.Error("grouped handler should share the root's program pointer")
	}

	// Derived attrs come before record attrs in the summary.
	record := slog.NewRecord(time.Now(), slog.LevelWarn, "retrying", 0)
	record.AddAttrs(slog.Int("attempt", 2))
	got := recordSummary(withAttrs.attrs, record)
	want := "retrying (channel=chat, attempt=2)"
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}
