// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/capture"
	"github.com/foredeck-sh/foredeck/lib/replay"
	"github.com/foredeck-sh/foredeck/lib/sealed"
	"github.com/foredeck-sh/foredeck/lib/secret"
)

type replayOptions struct {
	listen     string
	speed      float64
	chunkSize  int
	flushDelay time.Duration
	token      string
	failFirst  int
	identity   string
}

// replayCommand returns the "replay" command: serve a capture file or
// scenario script as a local SSE endpoint.
func replayCommand() *cli.Command {
	var opts replayOptions

	return &cli.Command{
		Name:    "replay",
		Summary: "Serve a capture or scenario as a local stream",
		Description: `Start a local server that replays a recorded stream.

A .fdcap file replays with its original frame timing; any other path
is parsed as a JSONC scenario script, which can also stage connection
failures and choose how the stream ends. Every client connection
replays the source from the start.

--speed rescales the recorded gaps (2 is twice as fast), --chunk-size
and --flush-delay split frames across arbitrary write boundaries, and
--fail-first answers the first N connections with 401. Point a client
at the printed URL, for example:

  foredeck tail --channel inbox --server http://127.0.0.1:40000 --token dev

A capture that was cut off without its trailer (a crashed recorder)
still replays: the intact records are salvaged and a warning is
logged.`,
		Usage: "foredeck replay <capture-or-scenario> [flags]",
		Examples: []cli.Example{
			{
				Description: "Replay a capture at double speed",
				Command:     "foredeck replay inbox.fdcap --speed 2",
			},
			{
				Description: "Replay on a fixed port, requiring a token",
				Command:     "foredeck replay inbox.fdcap --listen 127.0.0.1:8111 --token dev",
			},
			{
				Description: "Exercise reconnect handling with two initial 401s",
				Command:     "foredeck replay refresh.jsonc --fail-first 2",
			},
			{
				Description: "Stress frame reassembly with tiny chunks",
				Command:     "foredeck replay inbox.fdcap --chunk-size 7 --flush-delay 5ms",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("replay", pflag.ContinueOnError)
			flagSet.StringVar(&opts.listen, "listen", "127.0.0.1:0", "TCP address to listen on (port 0 picks a free port)")
			flagSet.Float64Var(&opts.speed, "speed", 1, "pace multiplier for recorded frame gaps")
			flagSet.IntVar(&opts.chunkSize, "chunk-size", 0, "split SSE writes into chunks of at most this many bytes (0: whole frames)")
			flagSet.DurationVar(&opts.flushDelay, "flush-delay", 0, "pause between chunk writes")
			flagSet.StringVar(&opts.token, "token", "", "require this bearer token on stream requests")
			flagSet.IntVar(&opts.failFirst, "fail-first", 0, "answer this many initial requests with 401")
			flagSet.StringVar(&opts.identity, "identity", "", "age identity file for replaying an encrypted capture")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("capture or scenario path is required\n\nUsage: foredeck replay <capture-or-scenario> [flags]")
			}
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument: %s", args[1])
			}
			return runReplay(ctx, args[0], opts, logger)
		},
	}
}

func runReplay(ctx context.Context, path string, opts replayOptions, logger *slog.Logger) error {
	source, err := loadReplaySource(path, opts.identity, logger)
	if err != nil {
		return err
	}

	server, err := replay.New(replay.Config{
		Source:        source,
		Listen:        opts.listen,
		Speed:         opts.speed,
		ChunkSize:     opts.chunkSize,
		FlushDelay:    opts.flushDelay,
		ExpectedToken: opts.token,
		FailFirst:     opts.failFirst,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Replaying %q (%d records) on %s (Ctrl-C to stop)\n", source.Label, len(source.Records), server.URL())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	fmt.Fprintf(os.Stderr, "Served %d stream requests\n", server.Requests())
	return nil
}

// loadReplaySource builds the server's source from a path: .fdcap
// files load as captures, everything else parses as a JSONC scenario.
func loadReplaySource(path, identityPath string, logger *slog.Logger) (replay.Source, error) {
	if strings.HasSuffix(path, ".fdcap") {
		return captureSource(path, identityPath, logger)
	}
	scenario, err := capture.ReadScenarioFile(path)
	if err != nil {
		return replay.Source{}, err
	}
	return replay.FromScenario(scenario, time.Now()), nil
}

func captureSource(path, identityPath string, logger *slog.Logger) (replay.Source, error) {
	var identity *secret.Buffer
	if identityPath != "" {
		var err error
		identity, err = sealed.ReadIdentityFile(identityPath)
		if err != nil {
			return replay.Source{}, fmt.Errorf("reading identity: %w", err)
		}
		defer identity.Close()
	}

	source, err := replay.FromCapture(path, capture.ReaderOptions{Identity: identity})
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, capture.ErrTruncated) {
		return replay.Source{}, err
	}

	// No trailer, so the recorder died mid-write. Records are framed
	// independently and read back fine up to the cut.
	reader, openErr := capture.Open(path, capture.ReaderOptions{Identity: identity})
	if openErr != nil {
		return replay.Source{}, openErr
	}
	defer reader.Close()

	var records []capture.Record
	for reader.Next() {
		records = append(records, reader.Record())
	}
	if readErr := reader.Err(); readErr != nil && !errors.Is(readErr, capture.ErrTruncated) {
		return replay.Source{}, fmt.Errorf("reading capture %s: %w", path, readErr)
	}
	logger.Warn("capture is missing its trailer, replaying salvaged records",
		"path", path,
		"records", len(records),
	)
	return replay.Source{
		Label:   reader.Header().Label,
		Records: records,
		End:     capture.EndEOF,
	}, nil
}
