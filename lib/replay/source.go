// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"fmt"
	"time"

	"github.com/foredeck-sh/foredeck/lib/capture"
)

// Source is the material a replay server serves: records to stream,
// scripted connection failures consumed before streaming begins, and
// the terminal behavior.
type Source struct {
	// Label names the source in logs. Carries the capture or scenario
	// label.
	Label string

	// Records are streamed in order. Gaps between At timestamps drive
	// pacing.
	Records []capture.Record

	// Failures are HTTP status codes. Each incoming stream request
	// consumes one and is answered with it until the list is empty.
	Failures []int

	// End selects the terminal behavior: capture.EndDone writes the
	// [DONE] sentinel, capture.EndEOF (or empty) closes the response
	// cleanly, capture.EndDrop severs the connection without a clean
	// close.
	End string
}

// FromCapture loads every record of a capture file into a Source.
// Captures end with a clean EOF — the sentinel and scripted failures
// are scenario features.
func FromCapture(path string, options capture.ReaderOptions) (Source, error) {
	reader, err := capture.Open(path, options)
	if err != nil {
		return Source{}, err
	}
	defer reader.Close()

	var records []capture.Record
	for reader.Next() {
		records = append(records, reader.Record())
	}
	if err := reader.Err(); err != nil {
		return Source{}, fmt.Errorf("reading capture %s: %w", path, err)
	}

	return Source{
		Label:   reader.Header().Label,
		Records: records,
		End:     capture.EndEOF,
	}, nil
}

// FromScenario compiles a scenario into a Source. startedAt anchors
// the record timestamps; the scripted delays become the gaps between
// them.
func FromScenario(scenario *capture.Scenario, startedAt time.Time) Source {
	return Source{
		Label:    scenario.Label,
		Records:  scenario.Records(startedAt),
		Failures: scenario.ConnectionFailures(),
		End:      scenario.End(),
	}
}
