// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the foredeck CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in cmd/foredeck/commands
// and dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples. Execute
// threads a context and logger down the tree: the context is canceled on
// SIGINT/SIGTERM, which is how the streaming commands (watch, tail, record,
// replay) learn to shut down.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// Authentication state is not managed here: commands that need a session
// load it through lib/session, the same package the streaming client uses
// for token refresh.
package cli
