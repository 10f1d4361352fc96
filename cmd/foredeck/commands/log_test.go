// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/foredeck-sh/foredeck/lib/eventlog"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{"empty means no cutoff", "", time.Time{}, false},
		{"minutes", "90m", now.Add(-90 * time.Minute), false},
		{"hours", "24h", now.Add(-24 * time.Hour), false},
		{"rfc3339", "2026-03-01T09:30:00Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), false},
		{"rfc3339 with offset", "2026-03-01T09:30:00+02:00", time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC), false},
		{"garbage", "yesterday", time.Time{}, true},
		{"date without time", "2026-03-01", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSince(now, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseSince(%q) succeeded, want error", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSince(%q): %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseSince(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestPrintEntries_Text(t *testing.T) {
	entries := []eventlog.Entry{
		{
			ID:         2,
			ReceivedAt: time.Date(2026, 3, 14, 12, 5, 0, 0, time.UTC),
			Channel:    "inbox",
			Kind:       "inbox.task.created",
			Resource:   "task-81",
			Payload:    []byte(`{"task_id":"task-81"}`),
		},
		{
			ID:         1,
			ReceivedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
			Channel:    "integration:github",
			Kind:       "integration.sync.completed",
			Payload:    []byte(`{"status":"completed"}`),
		},
	}

	var buf strings.Builder
	if err := printEntries(&buf, entries, false); err != nil {
		t.Fatalf("printEntries: %v", err)
	}

	want := "2026-03-14T12:05:00Z  inbox  inbox.task.created  task-81  {\"task_id\":\"task-81\"}\n" +
		"2026-03-14T12:00:00Z  integration:github  integration.sync.completed  -  {\"status\":\"completed\"}\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestPrintEntries_JSON(t *testing.T) {
	entries := []eventlog.Entry{{
		ID:         7,
		ReceivedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Channel:    "inbox",
		Kind:       "inbox.mention.created",
		Resource:   "conv-9",
		Payload:    []byte(`{"conversation_id":"conv-9"}`),
	}}

	var buf strings.Builder
	if err := printEntries(&buf, entries, true); err != nil {
		t.Fatalf("printEntries: %v", err)
	}

	var line journalLine
	if err := json.Unmarshal([]byte(buf.String()), &line); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if line.ID != 7 {
		t.Errorf("id = %d, want 7", line.ID)
	}
	if !line.ReceivedAt.Equal(entries[0].ReceivedAt) {
		t.Errorf("received_at = %v, want %v", line.ReceivedAt, entries[0].ReceivedAt)
	}
	if line.Channel != "inbox" || line.Kind != "inbox.mention.created" || line.Resource != "conv-9" {
		t.Errorf("got %s/%s/%s, want inbox/inbox.mention.created/conv-9", line.Channel, line.Kind, line.Resource)
	}
	if string(line.Payload) != `{"conversation_id":"conv-9"}` {
		t.Errorf("payload = %s, want the raw frame data", line.Payload)
	}
}

func TestPrintEntries_JSONQuotesNonJSONPayload(t *testing.T) {
	entries := []eventlog.Entry{{
		ID:         1,
		ReceivedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Channel:    "inbox",
		Kind:       "connected",
		Payload:    []byte("not json"),
	}}

	var buf strings.Builder
	if err := printEntries(&buf, entries, true); err != nil {
		t.Fatalf("printEntries: %v", err)
	}

	var line journalLine
	if err := json.Unmarshal([]byte(buf.String()), &line); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if string(line.Payload) != `"not json"` {
		t.Errorf("payload = %s, want the data carried as a JSON string", line.Payload)
	}
}
