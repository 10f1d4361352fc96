// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package replay serves recorded or scripted event streams as a local
// SSE endpoint, standing in for the platform during development and
// testing.
//
// A [Server] replays a [Source] — a capture file loaded with
// [FromCapture] or a scenario compiled with [FromScenario] — as
// text/event-stream responses. Every GET streams the records; the chat
// POST does too, answering whatever frames the source scripts
// regardless of the request body. Gaps between record timestamps pace
// the replay, scaled by the configured speed.
//
// The server simulates the platform's failure modes so client behavior
// can be exercised end to end: scripted connection failures (a 503
// outage, a 401 for the token-refresh path), bearer-token checks,
// chunked writes that land frame data on arbitrary byte boundaries,
// and the three stream endings — the [DONE] sentinel, a clean EOF, or
// an abrupt connection drop.
package replay
