// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/capture"
	"github.com/foredeck-sh/foredeck/lib/eventlog"
	"github.com/foredeck-sh/foredeck/lib/feed"
	"github.com/foredeck-sh/foredeck/lib/sealed"
	"github.com/foredeck-sh/foredeck/lib/sse"
)

type recordOptions struct {
	output     string
	compress   string
	recipients []string
	journal    bool
}

// recordCommand returns the "record" command: subscribe to one channel
// and write every frame, verbatim, to a capture file.
func recordCommand() *cli.Command {
	var opts recordOptions

	return &cli.Command{
		Name:    "record",
		Summary: "Record a channel to a replayable capture file",
		Description: `Record a channel's frames to a capture file.

The channel is inbox, integration:<id>, or trigger:<id>. Frames are
written exactly as the server sent them, so a later "foredeck replay"
of the file reproduces the original stream. Chat streams are
request-scoped and cannot be recorded.

Captures default to zstd compression; --encrypt-to seals the file to
one or more age recipients, and only a matching identity can read it
back. With --journal, each recorded frame is also appended to the
local event journal for "foredeck log" queries.

Recording runs until interrupted. On Ctrl-C the file is finalized
with its record count and digest; a file missing that trailer (say,
after a crash) still replays up to the last complete frame.`,
		Usage: "foredeck record <channel> [flags]",
		Examples: []cli.Example{
			{
				Description: "Record the inbox to the default captures directory",
				Command:     "foredeck record inbox",
			},
			{
				Description: "Record an integration to a chosen file with lz4",
				Command:     "foredeck record integration:github --output gh.fdcap --compress lz4",
			},
			{
				Description: "Record an encrypted capture",
				Command:     "foredeck record inbox --encrypt-to age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p",
			},
			{
				Description: "Record and journal at the same time",
				Command:     "foredeck record inbox --journal",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("record", pflag.ContinueOnError)
			flagSet.StringVar(&opts.output, "output", "", "capture file path (default: paths.captures from config)")
			flagSet.StringVar(&opts.compress, "compress", "zstd", "frame compression: none, lz4, or zstd")
			flagSet.StringArrayVar(&opts.recipients, "encrypt-to", nil, "age public key to encrypt the capture to (repeatable)")
			flagSet.BoolVar(&opts.journal, "journal", false, "also append recorded frames to the event journal")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("channel is required\n\nUsage: foredeck record <channel> [flags]")
			}
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument: %s", args[1])
			}
			return runRecord(ctx, args[0], opts, logger)
		},
	}
}

func runRecord(ctx context.Context, label string, opts recordOptions, logger *slog.Logger) error {
	tag, err := capture.ParseCompressionTag(opts.compress)
	if err != nil {
		return err
	}
	for _, recipient := range opts.recipients {
		if err := sealed.ParsePublicKey(recipient); err != nil {
			return fmt.Errorf("invalid --encrypt-to recipient %q: %w", recipient, err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tokens, err := openTokenSource(cfg, logger)
	if err != nil {
		return err
	}

	if opts.output == "" || opts.journal {
		if err := cfg.EnsurePaths(); err != nil {
			return err
		}
	}
	output := opts.output
	if output == "" {
		name := fmt.Sprintf("%s-%s.fdcap", strings.ReplaceAll(label, ":", "-"), time.Now().UTC().Format("20060102-150405"))
		output = filepath.Join(cfg.Paths.Captures, name)
	}

	var journal *eventlog.Journal
	if opts.journal {
		journal, err = eventlog.Open(eventlog.Config{Path: cfg.Paths.Journal, Logger: logger})
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer journal.Close()
	}

	// A failed write cancels this context so the command exits instead
	// of streaming into a broken file.
	recordCtx, cancelRecord := context.WithCancel(ctx)
	defer cancelRecord()

	sink := &recordSink{
		label:   label,
		journal: journal,
		logger:  logger,
		cancel:  cancelRecord,
	}

	feedCfg := feed.Config{
		BaseURL: tokens.Session().BaseURL,
		Tokens:  tokens,
		Logger:  logger.With("channel", label),
	}
	sub, err := feed.Raw(feedCfg, label, feed.RawHandlers{
		OnFrame: sink.frame,
		OnError: func(err error) {
			logger.Warn("stream error", "channel", label, "error", err)
		},
	})
	if err != nil {
		return err
	}

	writer, err := capture.Create(output, capture.WriterOptions{
		Label:       label,
		Compression: tag,
		Recipients:  opts.recipients,
	})
	if err != nil {
		return fmt.Errorf("creating capture: %w", err)
	}
	sink.writer = writer

	fmt.Fprintf(os.Stderr, "Recording %s to %s (Ctrl-C to stop)\n", label, output)

	sub.Connect()
	<-recordCtx.Done()
	sub.Disconnect()

	count, err := sink.close()
	if err != nil {
		return fmt.Errorf("recording %s: %w", label, err)
	}
	fmt.Fprintf(os.Stderr, "Recorded %d frames to %s\n", count, output)
	return nil
}

// recordSink lands frames in the capture writer and, optionally, the
// event journal. The writer is not safe for concurrent use and
// Disconnect does not wait out a callback already past its liveness
// check, so every writer touch — appends and the final close — runs
// under one mutex.
type recordSink struct {
	mu      sync.Mutex
	writer  *capture.Writer
	journal *eventlog.Journal
	label   string
	logger  *slog.Logger
	cancel  context.CancelFunc
	closed  bool
	failed  error
}

func (s *recordSink) frame(frame sse.Frame) {
	at := time.Now()
	data := []byte(frame.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed != nil {
		return
	}
	if err := s.writer.Append(at, frame.Type, data); err != nil {
		s.failed = err
		s.cancel()
		return
	}
	if s.journal == nil {
		return
	}
	entry := eventlog.Entry{
		ReceivedAt: at,
		Channel:    s.label,
		Kind:       frame.Type,
		Resource:   frameResource(data),
		Payload:    data,
	}
	// The capture is the primary artifact; a journal hiccup is logged,
	// not fatal.
	if err := s.journal.Append(context.Background(), entry); err != nil {
		s.logger.Warn("journal append failed", "channel", s.label, "error", err)
	}
}

// close finalizes the capture and reports the frames written. A write
// failure recorded earlier takes precedence over any close error.
func (s *recordSink) close() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	err := s.writer.Close()
	if s.failed != nil {
		err = s.failed
	}
	return s.writer.Count(), err
}
