// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/toeirei/keymaster-pinentry/internal/pinentry"
	"github.com/toeirei/keymaster-pinentry/internal/security"
	"github.com/toeirei/keymaster-pinentry/internal/terminal"
)

// Opener opens the named terminal, or the default one for an empty name.
type Opener func(name string) (*terminal.TTY, error)

// Backend implements pinentry.Backend with a bubbletea program bound to the
// user's terminal for the lifetime of one prompt.
type Backend struct {
	open       Opener
	defaultTTY string
}

// New returns a backend that uses defaultTTY unless the client names one.
func New(defaultTTY string) *Backend {
	return NewWithOpener(defaultTTY, terminal.Open)
}

// NewWithOpener is New with a custom way of opening terminals.
func NewWithOpener(defaultTTY string, open Opener) *Backend {
	return &Backend{open: open, defaultTTY: defaultTTY}
}

// Name identifies the backend in GETINFO flavor.
func (b *Backend) Name() string { return "tui" }

func (b *Backend) tty(t pinentry.TTY) (*terminal.TTY, error) {
	name := t.Name
	if name == "" {
		name = b.defaultTTY
	}
	return b.open(name)
}

// run drives model on tty. Raw mode is entered here as well as by
// bubbletea, so the terminal is restored even if the program panics.
func run(ctx context.Context, tty *terminal.TTY, model tea.Model) error {
	raw, err := terminal.EnterRaw(tty.In())
	if err != nil {
		return err
	}
	defer func() { _ = raw.Restore() }()

	prog := tea.NewProgram(model,
		tea.WithInput(tty.In()),
		tea.WithOutput(tty.Out()),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)
	if _, err := prog.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

type handle struct {
	tty *terminal.TTY
	p   pinentry.Prompt
}

// Display opens the terminal. The view itself is drawn by ReadSecret, which
// owns the event loop.
func (b *Backend) Display(ctx context.Context, p pinentry.Prompt) (pinentry.Handle, error) {
	tty, err := b.tty(p.TTY)
	if err != nil {
		return nil, err
	}
	return &handle{tty: tty, p: p}, nil
}

func (h *handle) ReadSecret(ctx context.Context, buf *security.Buffer) (pinentry.Outcome, error) {
	m := newPromptModel(h.p, buf, terminal.Deadline(h.p.Timeout))
	if err := run(ctx, h.tty, m); err != nil {
		return pinentry.OutcomeCancelled, err
	}
	return m.outcome, m.err
}

func (h *handle) Close() error {
	return h.tty.Close()
}

// Confirm shows a button dialog.
func (b *Backend) Confirm(ctx context.Context, d pinentry.Dialog) (pinentry.Choice, error) {
	if len(d.Buttons) == 0 {
		return pinentry.ChoiceCancelled, fmt.Errorf("dialog needs at least one button")
	}
	tty, err := b.tty(d.TTY)
	if err != nil {
		return pinentry.ChoiceCancelled, err
	}
	defer func() { _ = tty.Close() }()

	m := newDialogModel(d, terminal.Deadline(d.Timeout))
	if err := run(ctx, tty, m); err != nil {
		return pinentry.ChoiceCancelled, err
	}
	return m.choice, nil
}

// Message shows d with its single button.
func (b *Backend) Message(ctx context.Context, d pinentry.Dialog) (pinentry.Choice, error) {
	return b.Confirm(ctx, d)
}
