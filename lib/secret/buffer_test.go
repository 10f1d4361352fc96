// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromBytesCopiesAndZeroesSource(t *testing.T) {
	t.Parallel()
	source := []byte("hunter2")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "hunter2" {
		t.Errorf("buffer contents = %q, want %q", got, "hunter2")
	}
	for i, b := range source {
		if b != 0 {
			t.Fatalf("source[%d] = %d, want 0 (source must be zeroed)", i, b)
		}
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	t.Parallel()
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) should fail", size)
		}
	}
}

func TestBufferCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBufferPanicsAfterClose(t *testing.T) {
	t.Parallel()
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("Bytes() after Close should panic")
		}
	}()
	buffer.Bytes()
}

func TestZero(t *testing.T) {
	t.Parallel()
	data := []byte{1, 2, 3}
	Zero(data)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("data[%d] = %d, want 0", i, b)
		}
	}
}

func TestReadFromPathTrimsWhitespace(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	buffer, err := ReadFromPath(path)
	if err != nil {
		t.Fatalf("ReadFromPath: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "s3cret" {
		t.Errorf("secret = %q, want %q", got, "s3cret")
	}
}

func TestReadFromPathEmptyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, []byte("\n\n"), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := ReadFromPath(path); err == nil {
		t.Fatal("ReadFromPath should fail on whitespace-only file")
	}
}
