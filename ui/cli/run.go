// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/keymaster-pinentry/internal/assuan"
	"github.com/toeirei/keymaster-pinentry/internal/config"
	"github.com/toeirei/keymaster-pinentry/internal/i18n"
	"github.com/toeirei/keymaster-pinentry/internal/journal"
	"github.com/toeirei/keymaster-pinentry/internal/logging"
	"github.com/toeirei/keymaster-pinentry/internal/pinentry"
	"github.com/toeirei/keymaster-pinentry/internal/security"
	"github.com/toeirei/keymaster-pinentry/internal/server"
	"github.com/toeirei/keymaster-pinentry/internal/terminal/basic"
	"github.com/toeirei/keymaster-pinentry/internal/transcript"
	"github.com/toeirei/keymaster-pinentry/internal/tui"
)

// stdio is the protocol channel in the default mode.
type stdio struct {
	io.Reader
	io.Writer
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// runPinentry serves one stdio session or, in server mode, every connection
// on the configured listener until interrupted.
func runPinentry(cmd *cobra.Command, c config.Config) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, cleanup, err := buildServerConfig(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	switch c.Mode {
	case "", "stdio":
		err := server.ServeConn(ctx, stdio{os.Stdin, os.Stdout}, cfg)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case "server":
		if c.Listen == "" {
			return errors.New("server mode needs --listen")
		}
		l, err := server.Listen(c.Listen)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("cli.serving", l.Addr().String()))
		return server.Serve(ctx, l, cfg)
	}
	return fmt.Errorf("unknown mode %q", c.Mode)
}

// newBackend maps a backend name to its implementation. The returned name
// is what GETINFO flavor reports.
func newBackend(name, ttyName string) (pinentry.Backend, string, error) {
	switch name {
	case "", "tty", "basic":
		return basic.New(ttyName), "tty", nil
	case "tui", "curses":
		return tui.New(ttyName), "tui", nil
	}
	return nil, "", fmt.Errorf("unknown backend %q (want tty or tui)", name)
}

// buildServerConfig turns the loaded configuration into a server template.
// The returned cleanup closes the journal and transcript.
func buildServerConfig(ctx context.Context, c config.Config) (server.Config, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	backend, flavor, err := newBackend(c.Backend, c.TTYName)
	if err != nil {
		return server.Config{}, cleanup, err
	}
	codes := assuan.DefaultCodes()
	if err := codes.Override(c.ErrorCodes); err != nil {
		return server.Config{}, cleanup, err
	}
	v, _, _ := resolveBuildVersion(nil)
	logging.L.Debug("configuration",
		"mode", c.Mode,
		"backend", flavor,
		"timeout", c.Timeout,
		"max_attempts", c.MaxAttempts,
		"journal", c.JournalType,
		"journal_dsn", security.FromString(c.JournalDSN),
	)

	sc := server.Config{
		Session: pinentry.Config{
			Backend:      backend,
			Codes:        codes,
			MaxPinLength: c.MaxPinLength,
			Timeout:      time.Duration(c.Timeout) * time.Second,
			Sticky: pinentry.Sticky{
				TTY:         pinentry.TTY{Name: c.TTYName, Type: c.TTYType, Display: c.Display},
				LCCtype:     c.LCCtype,
				LCMessages:  c.LCMessages,
				MaxAttempts: c.MaxAttempts,
			},
			Flavor:  flavor,
			Version: v,
		},
	}

	if c.JournalDSN != "" {
		j, err := journal.Open(ctx, c.JournalType, c.JournalDSN)
		if err != nil {
			return server.Config{}, cleanup, err
		}
		sc.Journal = j
		closers = append(closers, func() {
			if err := j.Close(); err != nil {
				logging.Warnf("closing journal: %v", err)
			}
		})
	}
	if c.Transcript != "" {
		rec, err := transcript.Open(c.Transcript)
		if err != nil {
			cleanup()
			return server.Config{}, func() {}, fmt.Errorf("open transcript: %w", err)
		}
		sc.Transcript = rec
		closers = append(closers, func() { _ = rec.Close() })
	}
	return sc, cleanup, nil
}
