// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventlog is the local event journal: a SQLite record of every
// stream frame the client has seen, queryable after the fact with
// `foredeck log`.
//
// The journal is a single `events` table keyed by receive time. Feed
// callbacks call [Journal.Append] as frames arrive; queries filter by
// channel, kind prefix, resource, and time window and return entries
// newest first. The journal is an observation log, not a source of
// truth — the platform holds the real state, and the journal can be
// pruned or deleted freely.
//
// Storage is zombiezen.com/go/sqlite with WAL journaling, NORMAL
// synchronous, and a busy timeout, so a `foredeck watch` appending
// frames and a `foredeck log` querying history can share the database
// without stepping on each other. Connections come from a fixed-size
// sqlitex.Pool; the schema is applied to each connection on first use.
package eventlog
