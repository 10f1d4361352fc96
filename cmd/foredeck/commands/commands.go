// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete foredeck CLI command tree.
// Each command constructor returns a [cli.Command] wiring flags and a
// Run function over the lib packages; the tree itself carries no
// behavior beyond dispatch.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/version"
)

// Root builds and returns the complete foredeck CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "foredeck",
		Description: `Foredeck: streaming event client for the Foredeck agent platform.

Follow tasks, mentions, and approvals as they land, tail integration
and trigger activity, record streams to replayable capture files, and
keep a queryable local event journal.`,
		Subcommands: []*cli.Command{
			loginCommand(),
			whoamiCommand(),
			watchCommand(),
			tailCommand(),
			recordCommand(),
			replayCommand(),
			logCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("foredeck %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Authenticate (saves the session locally)",
				Command:     "foredeck login mel",
			},
			{
				Description: "Watch the inbox and configured channels in a dashboard",
				Command:     "foredeck watch",
			},
			{
				Description: "Tail events as JSON lines for scripting",
				Command:     "foredeck tail --json",
			},
			{
				Description: "Record the inbox stream to a capture file",
				Command:     "foredeck record inbox --output inbox.fdcap",
			},
			{
				Description: "Replay a capture as a local SSE endpoint at double speed",
				Command:     "foredeck replay inbox.fdcap --speed 2",
			},
			{
				Description: "Show the last hour of journaled task events",
				Command:     "foredeck log --since 1h --kind inbox.task",
			},
		},
	}
}
