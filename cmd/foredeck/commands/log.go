// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/eventlog"
)

type logOptions struct {
	since      string
	channel    string
	kind       string
	resource   string
	limit      int
	jsonOutput bool
	prune      string
}

// logCommand returns the "log" command: query and maintain the local
// event journal.
func logCommand() *cli.Command {
	var opts logOptions

	return &cli.Command{
		Name:    "log",
		Summary: "Query the local event journal",
		Description: `Query the event journal, newest entries first.

The journal is the SQLite database that "foredeck record --journal"
appends to. Filters combine: --channel matches the channel label
exactly, --kind matches the frame type by prefix ("inbox.task"
matches created, updated, and closed), --resource matches the task,
conversation, or run the frame concerns, and --since takes either a
duration back from now or an RFC 3339 timestamp.

--prune deletes entries older than the given age instead of querying;
it runs alone.`,
		Usage: "foredeck log [flags]",
		Examples: []cli.Example{
			{
				Description: "Everything from the last hour",
				Command:     "foredeck log --since 1h",
			},
			{
				Description: "Task activity on the inbox channel",
				Command:     "foredeck log --channel inbox --kind inbox.task",
			},
			{
				Description: "One task's history as JSON",
				Command:     "foredeck log --resource task-81 --json",
			},
			{
				Description: "Drop entries older than 30 days",
				Command:     "foredeck log --prune 720h",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("log", pflag.ContinueOnError)
			flagSet.StringVar(&opts.since, "since", "", "only entries newer than this: a duration (90m, 24h) or an RFC 3339 time")
			flagSet.StringVar(&opts.channel, "channel", "", "exact channel label, e.g. inbox or integration:github")
			flagSet.StringVar(&opts.kind, "kind", "", "frame type prefix, e.g. inbox.task")
			flagSet.StringVar(&opts.resource, "resource", "", "exact resource ID the frames concern")
			flagSet.IntVar(&opts.limit, "limit", 100, "maximum entries to print")
			flagSet.BoolVar(&opts.jsonOutput, "json", false, "print entries as JSON objects")
			flagSet.StringVar(&opts.prune, "prune", "", "delete entries older than this duration instead of querying")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runLog(ctx, opts, logger)
		},
	}
}

func runLog(ctx context.Context, opts logOptions, logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	journal, err := eventlog.Open(eventlog.Config{Path: cfg.Paths.Journal, Logger: logger})
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	if opts.prune != "" {
		if opts.since != "" || opts.channel != "" || opts.kind != "" || opts.resource != "" {
			return fmt.Errorf("--prune cannot be combined with query flags")
		}
		olderThan, err := time.ParseDuration(opts.prune)
		if err != nil {
			return fmt.Errorf("invalid --prune %q: want a duration like 720h", opts.prune)
		}
		pruned, err := journal.Prune(ctx, olderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Pruned %d entries older than %s\n", pruned, olderThan)
		return nil
	}

	since, err := parseSince(time.Now(), opts.since)
	if err != nil {
		return err
	}
	entries, err := journal.Query(ctx, eventlog.Filter{
		Since:    since,
		Channel:  opts.channel,
		Kind:     opts.kind,
		Resource: opts.resource,
		Limit:    opts.limit,
	})
	if err != nil {
		return err
	}
	return printEntries(os.Stdout, entries, opts.jsonOutput)
}

// parseSince resolves a --since value: a duration is subtracted from
// now, anything else must parse as RFC 3339. Empty means no cutoff.
func parseSince(now time.Time, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want a duration like 90m or an RFC 3339 time", value)
	}
	return t, nil
}

type journalLine struct {
	ID         int64           `json:"id"`
	ReceivedAt time.Time       `json:"received_at"`
	Channel    string          `json:"channel"`
	Kind       string          `json:"kind,omitempty"`
	Resource   string          `json:"resource,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

func printEntries(out io.Writer, entries []eventlog.Entry, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(out)
		for _, entry := range entries {
			line := journalLine{
				ID:         entry.ID,
				ReceivedAt: entry.ReceivedAt.UTC(),
				Channel:    entry.Channel,
				Kind:       entry.Kind,
				Resource:   entry.Resource,
			}
			if json.Valid(entry.Payload) {
				line.Payload = json.RawMessage(entry.Payload)
			} else if quoted, err := json.Marshal(string(entry.Payload)); err == nil {
				line.Payload = quoted
			}
			if err := encoder.Encode(line); err != nil {
				return err
			}
		}
		return nil
	}

	for _, entry := range entries {
		kind := entry.Kind
		if kind == "" {
			kind = "-"
		}
		resource := entry.Resource
		if resource == "" {
			resource = "-"
		}
		fmt.Fprintf(out, "%s  %s  %s  %s  %s\n",
			entry.ReceivedAt.UTC().Format(time.RFC3339), entry.Channel, kind, resource, entry.Payload)
	}
	return nil
}
