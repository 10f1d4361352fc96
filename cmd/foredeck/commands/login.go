// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/foredeck-sh/foredeck/cmd/foredeck/cli"
	"github.com/foredeck-sh/foredeck/lib/secret"
	"github.com/foredeck-sh/foredeck/lib/session"
)

// loginCommand returns the "login" command for authenticating against
// the platform. Performs a password login, verifies the session via
// whoami, and saves it to the well-known path. Subsequent commands
// (watch, tail, record) load the session transparently, like SSH keys.
func loginCommand() *cli.Command {
	var serverURL string
	var passwordFile string

	return &cli.Command{
		Name:    "login",
		Summary: "Authenticate and save a session",
		Description: `Log in to a Foredeck server and save the session locally.

After login, commands like "foredeck watch" and "foredeck tail" use the
saved session transparently — no flags needed. Access tokens are rotated
automatically through the refresh endpoint while commands run.

The session file is stored at ~/.config/foredeck/session.json (or
$FOREDECK_SESSION_FILE if set, or $XDG_CONFIG_HOME/foredeck/session.json;
paths.session_file in the config overrides all of these). The file is
written with mode 0600 since it contains tokens.

The password can be provided via --password-file (a path, or "-" to read
one line from stdin) or prompted interactively with echo disabled when
the flag is omitted.`,
		Usage: "foredeck login <handle> [flags]",
		Examples: []cli.Example{
			{
				Description: "Log in interactively (prompts for password)",
				Command:     "foredeck login mel",
			},
			{
				Description: "Log in to an explicit server",
				Command:     "foredeck login mel --server https://api.foredeck.sh",
			},
			{
				Description: "Log in with the password from a file",
				Command:     "foredeck login mel --password-file /path/to/password",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flagSet.StringVar(&serverURL, "server", "", "platform base URL (default: server.base_url from config)")
			flagSet.StringVar(&passwordFile, "password-file", "", "path to file containing the password, or - for stdin (default: prompt)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 1 {
				return fmt.Errorf("handle is required\n\nUsage: foredeck login <handle> [flags]")
			}
			handle := args[0]
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument: %s", args[1])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = cfg.Server.BaseURL
			}

			password, err := readLoginPassword(passwordFile)
			if err != nil {
				return err
			}
			defer password.Close()

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			client, err := session.NewClient(session.ClientConfig{
				BaseURL: serverURL,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			sess, err := client.Login(ctx, handle, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			// Verify the session works before saving.
			identity, err := client.WhoAmI(ctx, sess.AccessToken)
			if err != nil {
				return fmt.Errorf("session verification failed: %w", err)
			}

			path := sessionPath(cfg)
			if err := session.SaveTo(sess, path); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Logged in as %s\n", identity.Handle)
			fmt.Fprintf(os.Stderr, "Session saved to %s\n", path)
			return nil
		},
	}
}

// readLoginPassword reads the password for the login command. A file
// path (or "-" for stdin) reads through the secret package; an empty
// path prompts interactively with echo disabled.
func readLoginPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" {
		return secret.ReadFromPath(passwordFile)
	}

	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return nil, fmt.Errorf("no terminal available for interactive password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	buffer, err := secret.NewFromBytes(passwordBytes)
	if err != nil {
		secret.Zero(passwordBytes)
		return nil, err
	}
	return buffer, nil
}
