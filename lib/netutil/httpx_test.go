// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"strings"
	"testing"
)

func TestReadBody(t *testing.T) {
	t.Parallel()
	data, err := ReadBody(strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("ReadBody = %q, want %q", data, `{"ok":true}`)
	}
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()
	var payload struct {
		Error string `json:"error"`
	}
	err := DecodeBody(strings.NewReader(`{"error":"token expired"}`), &payload)
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if payload.Error != "token expired" {
		t.Errorf("payload.Error = %q, want %q", payload.Error, "token expired")
	}
}

func TestDecodeBodyInvalidJSON(t *testing.T) {
	t.Parallel()
	var payload map[string]any
	if err := DecodeBody(strings.NewReader("not json"), &payload); err == nil {
		t.Fatal("DecodeBody should fail on invalid JSON")
	}
}

func TestErrorBodyIgnoresReadErrors(t *testing.T) {
	t.Parallel()
	if got := ErrorBody(strings.NewReader("boom")); got != "boom" {
		t.Errorf("ErrorBody = %q, want %q", got, "boom")
	}
}

func TestReadBodyTruncatesAtLimit(t *testing.T) {
	t.Parallel()
	huge := strings.NewReader(strings.Repeat("x", int(MaxResponseSize)+1024))
	data, err := ReadBody(huge)
	if err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if int64(len(data)) != MaxResponseSize {
		t.Errorf("len(data) = %d, want %d", len(data), MaxResponseSize)
	}
}
