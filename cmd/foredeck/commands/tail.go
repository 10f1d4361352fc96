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
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/capture"
	"github.com/foredeck-sh/foredeck/lib/feed"
	"github.com/foredeck-sh/foredeck/lib/sealed"
	"github.com/foredeck-sh/foredeck/lib/secret"
	"github.com/foredeck-sh/foredeck/lib/sse"
	"github.com/foredeck-sh/foredeck/lib/stream"
)

type tailOptions struct {
	channels    []string
	resource    string
	jsonOutput  bool
	server      string
	token       string
	fromCapture string
	identity    string
}

// tailCommand returns the "tail" command: a headless line-per-frame
// stream printer, the scripting counterpart to watch.
func tailCommand() *cli.Command {
	var opts tailOptions

	return &cli.Command{
		Name:    "tail",
		Summary: "Print stream frames to stdout, one per line",
		Description: `Follow one or more channels and print every frame as it arrives.

Without --channel, follows the inbox plus the channels listed in the
config (watch.integrations, watch.triggers). Frames print as plain
text lines, or as JSON objects with --json for piping into jq.

With --from-capture, frames are read from a growing capture file on
disk instead of the network: point it at the file "foredeck record"
is writing and tail follows along, decrypting with --identity when
the capture is encrypted. No session is needed in this mode.

--server and --token redirect the tail at another endpoint, typically
a local "foredeck replay" server; with --token the saved session is
not touched at all.`,
		Usage: "foredeck tail [flags]",
		Examples: []cli.Example{
			{
				Description: "Follow the configured channels as text",
				Command:     "foredeck tail",
			},
			{
				Description: "Follow one integration and filter to a single resource",
				Command:     "foredeck tail --channel integration:github --resource task-81",
			},
			{
				Description: "Pipe inbox frames into jq",
				Command:     "foredeck tail --channel inbox --json | jq .data",
			},
			{
				Description: "Follow a capture file while it records",
				Command:     "foredeck tail --from-capture inbox.fdcap --json",
			},
			{
				Description: "Tail a local replay server without a session",
				Command:     "foredeck tail --channel inbox --server http://127.0.0.1:8111 --token dev",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flagSet.StringArrayVar(&opts.channels, "channel", nil, "channel to follow: inbox, integration:<id>, or trigger:<id> (repeatable, overrides config)")
			flagSet.StringVar(&opts.resource, "resource", "", "only print frames about this resource ID")
			flagSet.BoolVar(&opts.jsonOutput, "json", false, "print frames as JSON objects")
			flagSet.StringVar(&opts.server, "server", "", "override the server base URL (e.g. a local replay server)")
			flagSet.StringVar(&opts.token, "token", "", "static bearer token instead of the saved session")
			flagSet.StringVar(&opts.fromCapture, "from-capture", "", "follow a capture file on disk instead of the network")
			flagSet.StringVar(&opts.identity, "identity", "", "age identity file for reading an encrypted capture")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if opts.fromCapture != "" {
				if len(opts.channels) > 0 {
					return fmt.Errorf("--channel cannot be combined with --from-capture: a capture holds a single channel")
				}
				return tailCapture(ctx, opts, logger)
			}
			return tailStreams(ctx, opts, logger)
		},
	}
}

// tailStreams follows live channels over the network.
func tailStreams(ctx context.Context, opts tailOptions, logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	baseURL := cfg.Server.BaseURL
	var tokens stream.TokenSource
	if opts.token != "" {
		tokens = stream.StaticToken(opts.token)
	} else {
		source, err := openTokenSource(cfg, logger)
		if err != nil {
			return err
		}
		tokens = source
		baseURL = source.Session().BaseURL
	}
	if opts.server != "" {
		baseURL = opts.server
	}
	labels := opts.channels
	if len(labels) == 0 {
		labels = resolveChannels(cfg, nil, nil)
	}

	printer := &framePrinter{out: os.Stdout, json: opts.jsonOutput}

	for _, label := range labels {
		feedCfg := feed.Config{
			BaseURL: baseURL,
			Tokens:  tokens,
			Logger:  logger.With("channel", label),
		}
		sub, err := feed.Raw(feedCfg, label, feed.RawHandlers{
			OnFrame: func(frame sse.Frame) {
				if opts.resource != "" && frameResource([]byte(frame.Data)) != opts.resource {
					return
				}
				printer.print(time.Now(), label, frame.Type, []byte(frame.Data))
			},
			OnError: func(err error) {
				logger.Warn("stream error", "channel", label, "error", err)
			},
		})
		if err != nil {
			return err
		}
		defer sub.Disconnect()
		sub.Connect()
	}

	<-ctx.Done()
	return nil
}

// tailCapture follows a capture file as it grows, printing each record
// the way the live path prints frames.
func tailCapture(ctx context.Context, opts tailOptions, logger *slog.Logger) error {
	var identity *secret.Buffer
	if opts.identity != "" {
		var err error
		identity, err = sealed.ReadIdentityFile(opts.identity)
		if err != nil {
			return fmt.Errorf("reading identity: %w", err)
		}
		defer identity.Close()
	}

	// Read the header once for the channel label; Follow re-opens the
	// file itself as records land.
	reader, err := capture.Open(opts.fromCapture, capture.ReaderOptions{Identity: identity})
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	label := reader.Header().Label
	reader.Close()

	follower, err := capture.Follow(ctx, opts.fromCapture, capture.FollowOptions{
		Identity: identity,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("following capture: %w", err)
	}

	printer := &framePrinter{out: os.Stdout, json: opts.jsonOutput}
	for record := range follower.Records() {
		if opts.resource != "" && frameResource(record.Data) != opts.resource {
			continue
		}
		printer.print(record.At, label, record.Type, record.Data)
	}
	return follower.Err()
}

// framePrinter serializes frame output. Live tails run one dispatch
// goroutine per channel, so stdout writes go through a mutex.
type framePrinter struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
}

type frameLine struct {
	At      time.Time       `json:"at"`
	Channel string          `json:"channel"`
	Type    string          `json:"type,omitempty"`
	Data    json.RawMessage `json:"data"`
}

func (p *framePrinter) print(at time.Time, channel, frameType string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.json {
		displayType := frameType
		if displayType == "" {
			displayType = "-"
		}
		fmt.Fprintf(p.out, "%s  %s  %s  %s\n", at.UTC().Format(time.RFC3339), channel, displayType, data)
		return
	}

	line := frameLine{At: at.UTC(), Channel: channel, Type: frameType}
	if json.Valid(data) {
		line.Data = json.RawMessage(data)
	} else {
		// Non-JSON payloads (keepalives, malformed frames) are carried
		// as a JSON string so the output stays one valid object per line.
		quoted, err := json.Marshal(string(data))
		if err == nil {
			line.Data = quoted
		}
	}
	encoded, err := json.Marshal(line)
	if err != nil {
		return
	}
	fmt.Fprintf(p.out, "%s\n", encoded)
}
