// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

const scenarioScript = `{
	// Simulate a flaky connect followed by a short inbox session.
	"label": "flaky-inbox",
	"steps": [
		{"status": 401}, // first attempt rejected, client should retry
		{"emit": {"type": "connected", "data": {}}},
		{"delay_ms": 200},
		{"emit": {"type": "inbox.task.created", "data": {"id": "task-1", "title": "Triage overnight alerts"}}},
		{"emit": {"data": "keepalive"}},
		{"end": "done"},
	],
}`

func TestParseScenarioJSONC(t *testing.T) {
	t.Parallel()
	scenario, err := ParseScenario([]byte(scenarioScript))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}

	if scenario.Label != "flaky-inbox" {
		t.Errorf("Label = %q, want flaky-inbox", scenario.Label)
	}
	if len(scenario.Steps) != 6 {
		t.Fatalf("len(Steps) = %d, want 6", len(scenario.Steps))
	}
	if scenario.Steps[0].Status != 401 {
		t.Errorf("step 0 Status = %d, want 401", scenario.Steps[0].Status)
	}
	if scenario.Steps[1].Emit == nil || scenario.Steps[1].Emit.Type != "connected" {
		t.Errorf("step 1 = %+v, want connected emit", scenario.Steps[1])
	}
	if scenario.Steps[2].Delay() != 200*time.Millisecond {
		t.Errorf("step 2 Delay() = %v, want 200ms", scenario.Steps[2].Delay())
	}
	if !strings.Contains(string(scenario.Steps[3].Emit.Data), "task-1") {
		t.Errorf("step 3 Data = %s, want task-1 payload", scenario.Steps[3].Emit.Data)
	}
	if scenario.Steps[4].Emit.Type != "" {
		t.Errorf("step 4 Type = %q, want bare data", scenario.Steps[4].Emit.Type)
	}
	if got := string(scenario.Steps[4].Emit.Data); got != `"keepalive"` {
		t.Errorf("step 4 Data = %s, want \"keepalive\"", got)
	}
	if got := scenario.End(); got != EndDone {
		t.Errorf("End() = %q, want %q", got, EndDone)
	}
	if got := scenario.ConnectionFailures(); !slices.Equal(got, []int{401}) {
		t.Errorf("ConnectionFailures() = %v, want [401]", got)
	}
}

func TestScenarioValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{
			name:    "no steps",
			script:  `{"steps": []}`,
			wantErr: "scenario has no steps",
		},
		{
			name:    "empty step",
			script:  `{"steps": [{}]}`,
			wantErr: "exactly one of",
		},
		{
			name:    "two directives",
			script:  `{"steps": [{"emit": {"type": "connected"}, "delay_ms": 100}]}`,
			wantErr: "exactly one of",
		},
		{
			name:    "unknown end value",
			script:  `{"steps": [{"end": "explode"}]}`,
			wantErr: `end "explode" is not one of`,
		},
		{
			name:    "end before other steps",
			script:  `{"steps": [{"end": "done"}, {"emit": {"type": "connected"}}]}`,
			wantErr: "end must be the final step",
		},
		{
			name:    "status out of range",
			script:  `{"steps": [{"status": 42}]}`,
			wantErr: "not a valid HTTP status",
		},
		{
			name:    "negative delay",
			script:  `{"steps": [{"delay_ms": -5}]}`,
			wantErr: "delay_ms must be positive",
		},
		{
			name:    "times on emit step",
			script:  `{"steps": [{"emit": {"type": "connected"}, "times": 2}]}`,
			wantErr: "times applies only to status steps",
		},
		{
			name:    "negative times",
			script:  `{"steps": [{"status": 503, "times": -1}]}`,
			wantErr: "times must be non-negative",
		},
		{
			name:    "status after emit",
			script:  `{"steps": [{"emit": {"type": "connected"}}, {"status": 503}]}`,
			wantErr: "must precede emit steps",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseScenario([]byte(test.script))
			if err == nil {
				t.Fatalf("ParseScenario succeeded, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, test.wantErr)
			}
		})
	}
}

func TestScenarioRecords(t *testing.T) {
	t.Parallel()
	scenario, err := ParseScenario([]byte(`{"steps": [
		{"emit": {"type": "connected", "data": {}}},
		{"delay_ms": 250},
		{"emit": {"type": "inbox.task.created", "data": {"id": "task-1"}}},
		{"delay_ms": 100},
		{"emit": {"type": "inbox.task.updated", "data": {"id": "task-1"}}}
	]}`))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}

	records := scenario.Records(captureEpoch)
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	wantOffsets := []time.Duration{0, 250 * time.Millisecond, 350 * time.Millisecond}
	wantTypes := []string{"connected", "inbox.task.created", "inbox.task.updated"}
	for i, record := range records {
		if record.Seq != uint64(i+1) {
			t.Errorf("record %d: Seq = %d, want %d", i, record.Seq, i+1)
		}
		if want := captureEpoch.Add(wantOffsets[i]); !record.At.Equal(want) {
			t.Errorf("record %d: At = %v, want %v", i, record.At, want)
		}
		if record.Type != wantTypes[i] {
			t.Errorf("record %d: Type = %q, want %q", i, record.Type, wantTypes[i])
		}
	}
	if !strings.Contains(string(records[1].Data), "task-1") {
		t.Errorf("record 1 Data = %s, want task-1 payload", records[1].Data)
	}
}

func TestScenarioEndDefaultsToEOF(t *testing.T) {
	t.Parallel()
	scenario, err := ParseScenario([]byte(`{"steps": [{"emit": {"type": "connected"}}]}`))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	if got := scenario.End(); got != EndEOF {
		t.Errorf("End() = %q, want %q", got, EndEOF)
	}
}

func TestConnectionFailuresExpandTimes(t *testing.T) {
	t.Parallel()
	scenario, err := ParseScenario([]byte(`{"steps": [
		{"status": 503, "times": 3},
		{"status": 401},
		{"emit": {"type": "connected"}}
	]}`))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	want := []int{503, 503, 503, 401}
	if got := scenario.ConnectionFailures(); !slices.Equal(got, want) {
		t.Errorf("ConnectionFailures() = %v, want %v", got, want)
	}
}

func TestReadScenarioFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "flaky.jsonc")
	if err := os.WriteFile(path, []byte(scenarioScript), 0o644); err != nil {
		t.Fatal(err)
	}

	scenario, err := ReadScenarioFile(path)
	if err != nil {
		t.Fatalf("ReadScenarioFile: %v", err)
	}
	if scenario.Label != "flaky-inbox" {
		t.Errorf("Label = %q, want flaky-inbox", scenario.Label)
	}
}

func TestReadScenarioFileErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "absent.jsonc")
		_, err := ReadScenarioFile(path)
		if err == nil || !strings.Contains(err.Error(), path) {
			t.Errorf("error = %v, want it to name %s", err, path)
		}
	})

	t.Run("invalid script", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "broken.jsonc")
		if err := os.WriteFile(path, []byte(`{"steps": []}`), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := ReadScenarioFile(path)
		if err == nil || !strings.Contains(err.Error(), path) {
			t.Errorf("error = %v, want it to name %s", err, path)
		}
	})
}
