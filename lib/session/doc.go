// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package session manages the foredeck client's authentication state.
//
// A [Session] is the saved result of "foredeck login": the user's
// handle, the access and refresh tokens, and the server they came
// from. It is stored as owner-only JSON at the well-known path
// returned by [FilePath] and loaded transparently by commands that
// need authentication — set up once, then invisible.
//
// [Client] speaks the platform's auth endpoints (login, refresh,
// whoami). [TokenSource] adapts a saved session to the stream
// package's token interface: it serves the current access token from
// an atomic cell and, when the stream connector reports the token
// expired, performs one refresh call, persists the rotated session,
// and hands the new token back. Concurrent refreshes within one
// TokenSource are single-flighted so a burst of 401s from parallel
// channels burns the refresh token only once.
package session
