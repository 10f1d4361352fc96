// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now()
// when tests need event IDs, conversation IDs, or capture labels that
// must be distinguishable across parallel tests.
//
//	convID := testutil.UniqueID("conv")   // "conv-1", "conv-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
