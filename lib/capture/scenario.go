// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
)

// End behaviors for a scenario's final step. They describe how the
// replay server terminates the stream.
const (
	// EndDone sends the terminal "[DONE]" sentinel, then closes.
	// This is how real chat streams finish.
	EndDone = "done"

	// EndEOF closes the stream cleanly without a sentinel. The
	// default for scenarios without an explicit end step.
	EndEOF = "eof"

	// EndDrop aborts the connection mid-stream without a clean
	// close, exercising client reconnect paths.
	EndDrop = "drop"
)

// Scenario is a hand-authored script for the replay server. Authored
// as JSONC (JSON extended with // line comments, /* block comments */,
// and trailing commas):
//
//	{
//	    // Force one token refresh before streaming.
//	    "label": "refresh-dance",
//	    "steps": [
//	        {"status": 401},
//	        {"emit": {"type": "connected", "data": {}}},
//	        {"delay_ms": 200},
//	        {"emit": {"type": "inbox.task.created", "data": {"id": "task-1"}}},
//	        {"end": "done"},
//	    ],
//	}
type Scenario struct {
	// Label names the scenario, standing in for a capture's header
	// label. Optional.
	Label string `json:"label,omitempty"`

	// Steps run in order on every streaming connection.
	Steps []Step `json:"steps"`
}

// Step is one scenario action. Exactly one of Emit, DelayMS, Status,
// and End is set.
type Step struct {
	// Emit sends an SSE frame.
	Emit *EmitStep `json:"emit,omitempty"`

	// DelayMS pauses the stream for the given milliseconds.
	DelayMS int `json:"delay_ms,omitempty"`

	// Status fails a connection attempt with this HTTP status before
	// any streaming begins. Status steps must precede emit steps.
	Status int `json:"status,omitempty"`

	// Times is how many consecutive connection attempts a status
	// step fails. Zero means one.
	Times int `json:"times,omitempty"`

	// End terminates the stream: "done", "eof", or "drop". Only
	// valid as the final step.
	End string `json:"end,omitempty"`
}

// EmitStep is the frame payload of an emit step.
type EmitStep struct {
	// Type is the SSE event type. Empty emits a bare data frame, the
	// shape chat streams use.
	Type string `json:"type,omitempty"`

	// Data is the frame payload, kept raw so the scenario author
	// controls the exact bytes on the wire.
	Data json.RawMessage `json:"data,omitempty"`
}

// Delay returns the step's pause duration.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

// Count returns how many connection attempts a status step fails.
func (s Step) Count() int {
	if s.Times <= 0 {
		return 1
	}
	return s.Times
}

// ParseScenario strips JSONC comments and trailing commas from data,
// then unmarshals and validates the scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	stripped := jsonc.ToJSON(data)

	var scenario Scenario
	if err := json.Unmarshal(stripped, &scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	return &scenario, nil
}

// ReadScenarioFile reads a JSONC scenario file from disk and parses
// it. Returns a descriptive error if the file cannot be read or the
// script is malformed.
func ReadScenarioFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return scenario, nil
}

// Validate checks the scenario's structure. All problems are reported,
// not just the first.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}

	var errs []error
	sawEmit := false
	for i, step := range s.Steps {
		directives := 0
		if step.Emit != nil {
			directives++
		}
		if step.DelayMS != 0 {
			directives++
		}
		if step.Status != 0 {
			directives++
		}
		if step.End != "" {
			directives++
		}
		if directives != 1 {
			errs = append(errs, fmt.Errorf("step %d: exactly one of emit, delay_ms, status, end is required", i))
			continue
		}
		if step.Times != 0 && step.Status == 0 {
			errs = append(errs, fmt.Errorf("step %d: times applies only to status steps", i))
		}

		switch {
		case step.Emit != nil:
			sawEmit = true

		case step.DelayMS != 0:
			if step.DelayMS < 0 {
				errs = append(errs, fmt.Errorf("step %d: delay_ms must be positive", i))
			}

		case step.Status != 0:
			if step.Status < 100 || step.Status > 599 {
				errs = append(errs, fmt.Errorf("step %d: status %d is not a valid HTTP status", i, step.Status))
			}
			if step.Times < 0 {
				errs = append(errs, fmt.Errorf("step %d: times must be non-negative", i))
			}
			if sawEmit {
				errs = append(errs, fmt.Errorf("step %d: status steps configure connection failures and must precede emit steps", i))
			}

		case step.End != "":
			if step.End != EndDone && step.End != EndEOF && step.End != EndDrop {
				errs = append(errs, fmt.Errorf("step %d: end %q is not one of %q, %q, %q", i, step.End, EndDone, EndEOF, EndDrop))
			}
			if i != len(s.Steps)-1 {
				errs = append(errs, fmt.Errorf("step %d: end must be the final step", i))
			}
		}
	}
	return errors.Join(errs...)
}

// End returns the scenario's terminal behavior. Scenarios without an
// explicit end step close the stream without a sentinel.
func (s *Scenario) End() string {
	if n := len(s.Steps); n > 0 && s.Steps[n-1].End != "" {
		return s.Steps[n-1].End
	}
	return EndEOF
}

// ConnectionFailures returns the scripted connection-attempt failures
// in order. Each entry fails one attempt with its HTTP status before
// streaming begins.
func (s *Scenario) ConnectionFailures() []int {
	var failures []int
	for _, step := range s.Steps {
		if step.Status != 0 {
			for range step.Count() {
				failures = append(failures, step.Status)
			}
		}
	}
	return failures
}

// Records compiles the scenario's emit steps into capture records.
// Delays accumulate into the record timestamps, so replaying the
// records with gap-derived pacing reproduces the scripted rhythm.
func (s *Scenario) Records(startedAt time.Time) []Record {
	at := startedAt.UTC()
	var records []Record
	for _, step := range s.Steps {
		switch {
		case step.DelayMS > 0:
			at = at.Add(step.Delay())
		case step.Emit != nil:
			records = append(records, Record{
				Seq:  uint64(len(records) + 1),
				At:   at,
				Type: step.Emit.Type,
				Data: []byte(step.Emit.Data),
			})
		}
	}
	return records
}
