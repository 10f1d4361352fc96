// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package sse decodes server-sent event streams (text/event-stream)
// into discrete frames.
//
// The decoder consumes the subset of the protocol the Foredeck
// platform emits: "event:" lines type a frame, "data:" lines carry its
// payload, a blank line terminates it, and comment lines (leading ":")
// are ignored. Because it reads through a bufio.Reader, frames split
// across arbitrary chunk boundaries reassemble identically to the
// unsplit input — the transport's chunking is invisible to callers.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// DoneSentinel is the payload of the frame that marks logical end of
// stream. It terminates the scan and is never surfaced as a Frame.
const DoneSentinel = "[DONE]"

// Frame is one decoded wire record, before any JSON interpretation.
// Type is empty for untyped frames (streams that send only data
// lines).
type Frame struct {
	Type string
	Data string
}

// Scanner incrementally decodes frames from a stream. Use it like
// bufio.Scanner:
//
//	scanner := sse.NewScanner(response.Body)
//	for scanner.Next() {
//		frame := scanner.Frame()
//		...
//	}
//	if err := scanner.Err(); err != nil {
//		...
//	}
//
// Scanner is not safe for concurrent use.
type Scanner struct {
	reader     *bufio.Reader
	frame      Frame
	err        error
	terminated bool
}

// NewScanner returns a Scanner reading from r. The reader is buffered
// at 64 KiB, comfortably above the largest frames the platform emits.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		reader: bufio.NewReaderSize(r, 64*1024),
	}
}

// Next advances to the next frame. It returns false at end of stream,
// on the completion sentinel, or on a read error; Err and Terminated
// distinguish the three.
//
// A partial frame pending when the stream ends — an unterminated line
// or lines with no closing blank line — is discarded, never emitted: a
// truncated frame at a dropped connection must not masquerade as a
// complete one.
func (s *Scanner) Next() bool {
	if s.err != nil || s.terminated {
		return false
	}

	var frameType string
	var dataLines []string

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.err = err
			}
			// EOF: anything accumulated is an incomplete frame and is
			// dropped, including a partial final line.
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		// Blank line: frame boundary. Frames carry at least one data
		// line; an event: line alone is not a frame.
		if line == "" {
			if len(dataLines) == 0 {
				frameType = ""
				continue
			}
			data := strings.Join(dataLines, "\n")
			if data == DoneSentinel {
				s.terminated = true
				return false
			}
			s.frame = Frame{Type: frameType, Data: data}
			return true
		}

		// Comment line.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		// One leading space after the colon is part of the syntax, not
		// the value.
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			frameType = value
		case "data":
			dataLines = append(dataLines, value)
		default:
			// id, retry, and anything unrecognized: parsed, ignored.
		}
	}
}

// Frame returns the frame decoded by the last successful Next.
func (s *Scanner) Frame() Frame {
	return s.frame
}

// Err returns the first read error encountered, or nil if the stream
// ended cleanly (EOF or the completion sentinel).
func (s *Scanner) Err() error {
	return s.err
}

// Terminated reports whether the stream ended with the completion
// sentinel rather than a connection-level EOF. Callers use this to
// tell a server-completed stream from a dropped one.
func (s *Scanner) Terminated() bool {
	return s.terminated
}
