// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "sync"

// Binding ties subscription lifetime to two pieces of consumer state:
// an activation flag ("this view is visible", "streaming is enabled")
// and a resource key (a conversation ID, an integration ID). The
// stream runs exactly while both are satisfied — flag set and key
// non-empty — and a change to either tears the old subscription down
// before the new one dials.
//
// Each activation builds a fresh Subscription via the build function,
// so work left over from a previous epoch can never fire callbacks
// into the current one: the stale subscription is closed, and closed
// is terminal.
type Binding struct {
	build func(key string) *Subscription

	mu     sync.Mutex
	key    string
	sub    *Subscription
	closed bool
}

// NewBinding returns an inactive binding. build constructs the
// subscription for a given resource key; it may return nil to decline
// (for example when configuration is incomplete), which leaves the
// binding inactive until the next Update.
func NewBinding(build func(key string) *Subscription) *Binding {
	return &Binding{build: build}
}

// Update reconciles the binding against the desired state. Activating
// connects, deactivating disconnects, and a key change while active
// swaps the subscription. Redundant updates — same flag, same key —
// are no-ops and never thrash the connection.
func (b *Binding) Update(active bool, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	want := active && key != ""
	if b.sub != nil && (!want || key != b.key) {
		b.sub.Disconnect()
		b.sub = nil
	}
	if want && b.sub == nil {
		sub := b.build(key)
		if sub == nil {
			return
		}
		b.key = key
		b.sub = sub
		sub.Connect()
	}
}

// Subscription returns the subscription for the current activation, or
// nil when inactive. Callers may inspect its state or force a
// Reconnect; lifecycle stays with the binding.
func (b *Binding) Subscription() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub
}

// Close deactivates permanently. Further Updates are no-ops.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.sub != nil {
		b.sub.Disconnect()
		b.sub = nil
	}
}
