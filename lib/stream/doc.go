// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream maintains resilient connections to the server's
// event-stream endpoints.
//
// A Subscription owns one channel: it dials the endpoint with a bearer
// token from an injected TokenSource, decodes the response body as a
// server-sent event stream, and hands each frame to a Dispatcher. When
// the connection drops — network fault, server restart, clean
// end-of-stream — the subscription reconnects on its own, doubling the
// delay from one second up to a thirty-second cap and snapping back to
// the floor after any success. A 401 triggers at most one token
// refresh and one retry before the attempt is reported as failed.
//
// Two dispatcher shapes cover the server's channels. TypedDispatcher
// is for streams whose frames carry an event type: control frames
// ("connected", "error") plus domain frames routed by type prefix to a
// decoder. FieldDispatcher is for simple streams of untyped JSON
// payloads carrying some of the well-known fields (conversation_id,
// status, content, error, done), dispatched in that fixed order.
//
// Consumers whose streams follow UI state use a Binding, which holds
// the subscription open exactly while an activation flag is set and a
// resource key is present, building a fresh Subscription per
// activation. Disconnection is strict: once a subscription is torn
// down, timers and in-flight responses that resolve later are
// discarded without firing callbacks.
package stream
