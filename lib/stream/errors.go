// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
)

// errNoToken marks a connect attempt made with no token available.
// This is the "not authenticated" case: the attempt is abandoned
// silently with no retry and no error callback, because it reflects
// client state rather than a transient fault.
var errNoToken = errors.New("stream: no auth token available")

// TransportError is a connection-level failure: a network error, a
// non-2xx response after the one-shot auth retry, or an unexpected
// error from the response body mid-stream. Transport errors are
// surfaced through OnError and drive the subscription into
// reconnection.
type TransportError struct {
	// StatusCode is the HTTP status of the failed response, or 0 for
	// failures below the HTTP layer.
	StatusCode int

	// Body is the response body of the failed request, bounded by
	// netutil.MaxResponseSize. Empty for network-level failures.
	Body string

	// Err is the underlying error for network-level failures.
	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body == "" {
			return fmt.Sprintf("stream: HTTP %d", e.StatusCode)
		}
		return fmt.Sprintf("stream: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("stream: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a malformed frame on an otherwise healthy
// connection: a payload that should be JSON but does not parse. The
// raw text is carried so consumers can degrade to displaying it
// instead of dropping the event. Protocol errors do not terminate the
// stream.
type ProtocolError struct {
	// FrameType is the wire type of the offending frame; empty on
	// untyped channels.
	FrameType string

	// Raw is the frame payload that failed to parse.
	Raw string

	// Err is the JSON decode error.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.FrameType == "" {
		return fmt.Sprintf("stream: parsing frame payload: %v", e.Err)
	}
	return fmt.Sprintf("stream: parsing %q frame: %v", e.FrameType, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ServerError is an error the server reported in-band as an "error"
// frame. Message is the parsed {"error": ...} value, or the raw frame
// payload when that shape does not parse.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("stream: server reported: %s", e.Message)
}

// isCancellation reports whether err stems from deliberate teardown of
// the attempt context. Cancellation is never surfaced as an error.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
