// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O utilities shared by the stream
// connector and the auth client.
//
// The helpers bound every response body read at MaxResponseSize so a
// misbehaving server cannot exhaust memory. They are for JSON API
// responses (auth endpoints, error bodies on failed stream dials) —
// not for the event streams themselves, which are read incrementally
// by the frame decoder.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize is the bound on API response body reads: 8 MB.
// Legitimate responses on the endpoints this client talks to are a few
// kilobytes; the limit is generous enough to never interfere with
// normal operation while still capping a pathological response.
const MaxResponseSize int64 = 8 << 20

// ReadBody reads an API response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadBody(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeBody reads an API response body (up to MaxResponseSize bytes)
// and JSON-decodes it into v. Replaces the common io.ReadAll +
// json.Unmarshal pair.
func DecodeBody(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body for use in diagnostic
// messages. Read errors are ignored — a partial or empty body is still
// useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
