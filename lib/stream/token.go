// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"sync/atomic"
)

// TokenSource supplies bearer tokens for stream requests. The
// subscription never reaches into ambient state for credentials; the
// source is injected so tests and multi-account callers control it.
type TokenSource interface {
	// Token returns the current bearer token, or "" when the client is
	// not authenticated. An empty token makes the subscription settle
	// into Idle without connecting and without reporting an error.
	Token(ctx context.Context) (string, error)

	// Refresh is called after a 401 to obtain a replacement token. It
	// is invoked at most once per connect attempt; the attempt retries
	// once with the returned token. Returning an error or an empty
	// token fails the attempt with the original 401.
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed credential, such as an API
// key from configuration or a test fixture. It cannot be refreshed: a
// 401 against a static token is final.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

func (t StaticToken) Refresh(ctx context.Context) (string, error) {
	return "", errors.New("stream: static token cannot be refreshed")
}

// MemoryToken is a TokenSource backed by a swappable in-memory cell.
// Some external process (a login flow, a background refresher) calls
// Set when credentials change; Refresh simply re-reads the cell, so a
// 401 is retried with whatever token is current by then. Concurrent
// subscriptions sharing one MemoryToken each observe updates
// independently.
type MemoryToken struct {
	value atomic.Value // string
}

// NewMemoryToken returns a MemoryToken holding the given initial
// token, which may be "".
func NewMemoryToken(token string) *MemoryToken {
	t := &MemoryToken{}
	t.value.Store(token)
	return t
}

// Set replaces the stored token. Safe to call concurrently with
// active subscriptions; in-flight requests keep the token they were
// built with and pick up the new value on their next attempt.
func (t *MemoryToken) Set(token string) {
	t.value.Store(token)
}

func (t *MemoryToken) Token(ctx context.Context) (string, error) {
	return t.value.Load().(string), nil
}

func (t *MemoryToken) Refresh(ctx context.Context) (string, error) {
	return t.value.Load().(string), nil
}
