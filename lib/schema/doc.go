// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire types the Foredeck server sends over
// its event-stream channels. Event type constants (EventType*) are the
// frame type strings; Go structs define the JSON payloads.
//
// Channels and their payloads:
//
//   - inbox stream: [TaskEvent], [MentionEvent], [ApprovalEvent]
//   - integration streams: [IntegrationSyncEvent], [IntegrationItemEvent]
//   - trigger streams: [TriggerFiredEvent], [TriggerRunEvent]
//   - chat stream: [ChatPayload] frames in response to a [ChatRequest]
//
// Status enums ([TaskStatus], [ChatStatus], [SyncStatus],
// [TriggerRunStatus]) are self-describing strings that serialize
// directly to JSON; IsKnown reports whether a decoded value is one the
// client understands, since a newer server may introduce values this
// client has never seen.
//
// This package depends on no other Foredeck packages.
package schema
