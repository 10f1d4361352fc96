// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/config"
	"github.com/foredeck-sh/foredeck/lib/feed"
	"github.com/foredeck-sh/foredeck/lib/schema"
	"github.com/foredeck-sh/foredeck/lib/session"
	"github.com/foredeck-sh/foredeck/lib/stream"
	"github.com/foredeck-sh/foredeck/lib/watchui"
)

type watchOptions struct {
	conversation string
	say          string
	integrations []string
	triggers     []string
	logOutput    string
}

// watchCommand returns the "watch" command: the full-screen terminal
// viewer over the streaming channels.
func watchCommand() *cli.Command {
	var opts watchOptions

	return &cli.Command{
		Name:    "watch",
		Summary: "Watch live events in a terminal dashboard",
		Description: `Open the full-screen event viewer.

Follows the inbox notification stream plus the integration and trigger
channels listed in the config (watch.integrations, watch.triggers);
--integration and --trigger override those lists for one invocation.
Events land in a scrolling feed with a detail pane, fuzzy filtering
("/"), and a status bar showing each channel's connection state and
reconnect countdowns.

With --say, a chat message is sent when the viewer starts and the
agent's reply streams into the feed as a chat turn. The conversation is
--conversation, falling back to watch.conversation from the config;
with neither, the message starts a new conversation.

Requires authentication: run "foredeck login" first. Tokens are
refreshed in the background for as long as the viewer runs.`,
		Usage: "foredeck watch [flags]",
		Examples: []cli.Example{
			{
				Description: "Watch the inbox and configured channels",
				Command:     "foredeck watch",
			},
			{
				Description: "Follow two integrations for this session only",
				Command:     "foredeck watch --integration github --integration linear",
			},
			{
				Description: "Send a message and watch the reply stream in",
				Command:     "foredeck watch --say \"status report please\" --conversation conv-42",
			},
			{
				Description: "Keep a debug log of stream diagnostics",
				Command:     "foredeck watch --log-output /tmp/foredeck-watch.log",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			flagSet.StringVar(&opts.conversation, "conversation", "", "conversation ID for --say (default: watch.conversation from config)")
			flagSet.StringVar(&opts.say, "say", "", "send this chat message and stream the reply")
			flagSet.StringArrayVar(&opts.integrations, "integration", nil, "integration ID to follow (repeatable, overrides config)")
			flagSet.StringArrayVar(&opts.triggers, "trigger", nil, "trigger ID to follow (repeatable, overrides config)")
			flagSet.StringVar(&opts.logOutput, "log-output", "", "also write stream diagnostics to this file as JSON lines")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runWatch(ctx, cfg, opts, logger)
		},
	}
}

func runWatch(ctx context.Context, cfg *config.Config, opts watchOptions, logger *slog.Logger) error {
	tokens, err := openTokenSource(cfg, logger)
	if err != nil {
		return err
	}

	channels := resolveChannels(cfg, opts.integrations, opts.triggers)
	conversation := opts.conversation
	if conversation == "" {
		conversation = cfg.Watch.Conversation
	}

	statusChannels := channels
	if opts.say != "" {
		statusChannels = append(statusChannels, "chat")
	}
	model := watchui.New(watchui.Config{Channels: statusChannels})

	// Route background logging into the TUI: WARN and above surface in
	// the footer; INFO records (like "rotated session tokens") stay out
	// of the display.
	tuiHandler := watchui.NewLogHandler(slog.LevelWarn)

	var backgroundLogger *slog.Logger
	if opts.logOutput != "" {
		fileHandler, fileCloser, fileErr := openFileLogHandler(opts.logOutput, cfg.LogLevel())
		if fileErr != nil {
			return fmt.Errorf("cannot open log file %s: %w", opts.logOutput, fileErr)
		}
		defer fileCloser()
		backgroundLogger = slog.New(fanoutHandler{tuiHandler, fileHandler})
	} else {
		backgroundLogger = slog.New(tuiHandler)
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))

	// Wire the TUI handler to the program so log records flow into
	// bubbletea's message loop. Records logged before this point are
	// silently dropped; nothing is rendering yet.
	tuiHandler.SetProgram(program)

	feeds := watchFeeds{
		base: feed.Config{
			BaseURL: tokens.Session().BaseURL,
			Tokens:  tokens,
			Logger:  backgroundLogger,
		},
		program: program,
		logger:  backgroundLogger,
	}

	subscriptions, err := feeds.build(channels, conversation, opts.say)
	if err != nil {
		return err
	}
	for _, sub := range subscriptions {
		defer sub.Disconnect()
		sub.Connect()
	}

	// Rotate tokens proactively while the viewer runs, so long sessions
	// never hit a 401 mid-stream.
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	go refreshSessionTokens(refreshCtx, tokens, backgroundLogger)

	_, err = program.Run()
	if err != nil && ctx.Err() != nil {
		// SIGINT/SIGTERM tore the program down; that is a clean exit.
		return nil
	}
	return err
}

// watchFeeds builds the per-channel subscriptions, bridging feed
// callbacks into bubbletea messages.
type watchFeeds struct {
	base    feed.Config
	program *tea.Program
	logger  *slog.Logger
}

// config clones the shared feed config with a state bridge for one
// channel label.
func (w watchFeeds) config(label string) feed.Config {
	cfg := w.base
	cfg.OnStateChange = func(state stream.State, backoff time.Duration) {
		w.program.Send(watchui.StateMsg{Channel: label, State: state, Backoff: backoff})
	}
	return cfg
}

func (w watchFeeds) send(row watchui.Row) {
	w.program.Send(watchui.EventMsg{Row: row})
}

func (w watchFeeds) warn(label string) func(error) {
	return func(err error) {
		w.logger.Warn("stream error", "channel", label, "error", err)
	}
}

func (w watchFeeds) build(channels []string, conversation, say string) ([]*stream.Subscription, error) {
	var subscriptions []*stream.Subscription
	for _, label := range channels {
		var sub *stream.Subscription
		var err error
		switch {
		case label == "inbox":
			sub, err = w.inbox()
		case strings.HasPrefix(label, "integration:"):
			sub, err = w.integration(label)
		case strings.HasPrefix(label, "trigger:"):
			sub, err = w.trigger(label)
		default:
			err = fmt.Errorf("unknown channel %q", label)
		}
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}

	if say != "" {
		sub, err := w.chat(conversation, say)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, nil
}

func (w watchFeeds) inbox() (*stream.Subscription, error) {
	return feed.Notifications(w.config("inbox"), feed.NotificationHandlers{
		OnTask: func(eventType string, task schema.TaskEvent) {
			w.send(watchui.RowFromTask(time.Now(), eventType, task))
		},
		OnMention: func(mention schema.MentionEvent) {
			w.send(watchui.RowFromMention(time.Now(), mention))
		},
		OnApproval: func(approval schema.ApprovalEvent) {
			w.send(watchui.RowFromApproval(time.Now(), approval))
		},
		OnError: w.warn("inbox"),
	})
}

func (w watchFeeds) integration(label string) (*stream.Subscription, error) {
	id := strings.TrimPrefix(label, "integration:")
	return feed.Integration(w.config(label), id, feed.IntegrationHandlers{
		OnSync: func(sync schema.IntegrationSyncEvent) {
			w.send(watchui.RowFromSync(time.Now(), label, sync))
		},
		OnItem: func(item schema.IntegrationItemEvent) {
			w.send(watchui.RowFromItem(time.Now(), label, item))
		},
		OnError: w.warn(label),
	})
}

func (w watchFeeds) trigger(label string) (*stream.Subscription, error) {
	id := strings.TrimPrefix(label, "trigger:")
	return feed.Trigger(w.config(label), id, feed.TriggerHandlers{
		OnFired: func(fired schema.TriggerFiredEvent) {
			w.send(watchui.RowFromTriggerFired(time.Now(), label, fired))
		},
		OnRun: func(run schema.TriggerRunEvent) {
			w.send(watchui.RowFromTriggerRun(time.Now(), label, run))
		},
		OnError: w.warn(label),
	})
}

// chat sends one message and streams the reply turn into the feed.
// The subscription disconnects itself when the turn completes —
// reconnecting after that would re-send the message.
func (w watchFeeds) chat(conversation, message string) (*stream.Subscription, error) {
	var sub *stream.Subscription
	var turn strings.Builder
	conversationID := conversation

	sub, err := feed.Chat(w.config("chat"), schema.ChatRequest{
		ConversationID: conversation,
		Message:        message,
	}, feed.ChatHandlers{
		OnConversationID: func(id string) {
			conversationID = id
		},
		OnStatus: func(status schema.ChatStatus) {
			w.send(watchui.RowFromChatStatus(time.Now(), conversationID, status))
		},
		OnContent: func(delta string) {
			turn.WriteString(delta)
		},
		OnDone: func() {
			w.send(watchui.RowFromChatTurn(time.Now(), conversationID, turn.String()))
			sub.Disconnect()
		},
		OnError: w.warn("chat"),
	})
	return sub, err
}

// refreshSessionTokens rotates the session's token pair before the
// access token expires, refreshing at 80% of the remaining lifetime.
// Runs until the context is canceled. Streams also refresh on 401, so
// a failed rotation here degrades to that path rather than breaking
// the viewer.
func refreshSessionTokens(ctx context.Context, tokens *session.TokenSource, logger *slog.Logger) {
	sess := tokens.Session()
	if sess.ExpiresAt.IsZero() || sess.RefreshToken == "" {
		return
	}

	for {
		wait := time.Minute
		if ttl := time.Until(tokens.Session().ExpiresAt); ttl > 0 {
			wait = time.Duration(float64(ttl) * 0.8)
		}
		if wait < 10*time.Second {
			wait = 10 * time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if _, err := tokens.Refresh(ctx); err != nil {
			logger.Error("token refresh failed", "error", err)
		}
	}
}

// openFileLogHandler creates a slog.JSONHandler writing to the given
// file path at the configured level. Returns the handler, a cleanup
// function to close the file, and any error. The file is created or
// truncated.
func openFileLogHandler(path string, level slog.Level) (slog.Handler, func(), error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
