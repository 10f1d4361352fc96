// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/session"
)

// whoamiOutput is the JSON output for the whoami command.
type whoamiOutput struct {
	Handle      string `json:"handle"`
	Workspace   string `json:"workspace,omitempty"`
	Server      string `json:"server"`
	SessionFile string `json:"session_file"`
	Status      string `json:"status,omitempty"`
}

// whoamiCommand returns the "whoami" command for displaying the current
// identity. Shows the saved session's handle, server, and session file
// path. With --verify, checks the token against the server to confirm
// the session is still valid, refreshing it first if it has expired.
func whoamiCommand() *cli.Command {
	var verify bool
	var jsonOutput bool

	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the current identity",
		Description: `Display the currently logged-in identity.

Shows the handle, server URL, and session file path from the saved
session (created by "foredeck login").

With --verify, the saved access token is checked against the server to
confirm the session is still valid; an expired token is rotated through
the refresh endpoint first, so a healthy-but-stale session reads as
valid and is persisted with fresh tokens. Without --verify, only the
local session file is read (no network access).

Exits 1 when --verify finds the session unusable.`,
		Usage: "foredeck whoami [flags]",
		Examples: []cli.Example{
			{
				Description: "Show current identity",
				Command:     "foredeck whoami",
			},
			{
				Description: "Verify the session is still valid",
				Command:     "foredeck whoami --verify",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("whoami", pflag.ContinueOnError)
			flagSet.BoolVar(&verify, "verify", false, "verify the session against the server")
			flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
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
			path := sessionPath(cfg)
			sess, err := session.LoadFrom(path)
			if err != nil {
				return err
			}

			output := whoamiOutput{
				Handle:      sess.Handle,
				Server:      sess.BaseURL,
				SessionFile: path,
			}

			if verify {
				ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()

				identity, err := verifySession(ctx, sess, path, logger)
				if err != nil {
					output.Status = "invalid"
					printWhoami(output, jsonOutput)
					if !jsonOutput {
						fmt.Fprintln(os.Stderr, "session expired or revoked — run \"foredeck login\" to refresh")
					}
					return &cli.ExitError{Code: 1}
				}
				output.Workspace = identity.Workspace
				output.Status = fmt.Sprintf("valid (verified as %s)", identity.Handle)
			}

			printWhoami(output, jsonOutput)
			return nil
		},
	}
}

// verifySession checks the session's access token via whoami. A 401
// means the token aged out: rotate through the refresh endpoint (which
// persists the new pair to path) and verify once more.
func verifySession(ctx context.Context, sess *session.Session, path string, logger *slog.Logger) (*session.Identity, error) {
	client, err := session.NewClient(session.ClientConfig{
		BaseURL: sess.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	identity, err := client.WhoAmI(ctx, sess.AccessToken)
	if err == nil {
		return identity, nil
	}

	var loginErr *session.LoginError
	if !errors.As(err, &loginErr) || loginErr.StatusCode != 401 || sess.RefreshToken == "" {
		return nil, err
	}

	tokens, err := session.NewTokenSource(session.TokenSourceConfig{
		Client:  client,
		Session: sess,
		Path:    path,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	fresh, err := tokens.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return client.WhoAmI(ctx, fresh)
}

func printWhoami(output whoamiOutput, jsonOutput bool) {
	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(output)
		return
	}

	fmt.Fprintf(os.Stdout, "Handle:       %s\n", output.Handle)
	if output.Workspace != "" {
		fmt.Fprintf(os.Stdout, "Workspace:    %s\n", output.Workspace)
	}
	fmt.Fprintf(os.Stdout, "Server:       %s\n", output.Server)
	fmt.Fprintf(os.Stdout, "Session file: %s\n", output.SessionFile)
	if output.Status != "" {
		status := output.Status
		if status == "invalid" {
			status = "INVALID (token rejected by server)"
		}
		fmt.Fprintf(os.Stdout, "Status:       %s\n", status)
	}
}
