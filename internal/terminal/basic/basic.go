// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package basic is the minimal line-oriented terminal backend. It prints
// plain text, reads keys in raw mode without echo and uses no cursor
// movement beyond carriage return, line feed and clearing the current line.
package basic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/toeirei/keymaster-pinentry/internal/i18n"
	"github.com/toeirei/keymaster-pinentry/internal/pinentry"
	"github.com/toeirei/keymaster-pinentry/internal/security"
	"github.com/toeirei/keymaster-pinentry/internal/terminal"
)

const (
	underline   = "\x1b[4m"
	noUnderline = "\x1b[24m"
	clearLine   = "\r\x1b[2K"
)

// Opener opens the terminal named by the client, or the default one for an
// empty name.
type Opener func(name string) (terminal.Device, error)

// Backend implements pinentry.Backend on a plain terminal.
type Backend struct {
	open       Opener
	defaultTTY string
}

// New returns a backend that uses defaultTTY unless the client names one.
// An empty defaultTTY means the controlling terminal.
func New(defaultTTY string) *Backend {
	return NewWithOpener(defaultTTY, func(name string) (terminal.Device, error) {
		return terminal.Open(name)
	})
}

// NewWithOpener is New with a custom way of opening terminals.
func NewWithOpener(defaultTTY string, open Opener) *Backend {
	return &Backend{open: open, defaultTTY: defaultTTY}
}

// Name identifies the backend in GETINFO flavor.
func (b *Backend) Name() string { return "tty" }

func (b *Backend) device(t pinentry.TTY) (terminal.Device, error) {
	name := t.Name
	if name == "" {
		name = b.defaultTTY
	}
	return b.open(name)
}

// Display prints the prompt and returns a handle reading the answer.
func (b *Backend) Display(ctx context.Context, p pinentry.Prompt) (pinentry.Handle, error) {
	dev, err := b.device(p.TTY)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	header(&sb, p.Lang, p.Error, p.Title, p.Description)
	sb.WriteString("\r\n")
	sb.WriteString(clearLine)
	sb.WriteString(p.Prompt)
	if _, err := io.WriteString(dev, sb.String()); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("write to terminal: %w", err)
	}
	return &handle{
		dev:      dev,
		lang:     p.Lang,
		deadline: terminal.Deadline(p.Timeout),
	}, nil
}

// header writes the error banner, title and description.
func header(sb *strings.Builder, lang, errText, title, desc string) {
	if errText != "" {
		sb.WriteString(crlf(i18n.TL(lang, "error.prefix", errText)))
		sb.WriteString("\r\n")
	}
	if title != "" {
		sb.WriteString(crlf(title))
		sb.WriteString("\r\n")
	}
	if desc != "" {
		sb.WriteString(crlf(desc))
		sb.WriteString("\r\n")
	}
}

// crlf makes embedded newlines safe for a terminal in raw mode.
func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

type handle struct {
	dev      terminal.Device
	lang     string
	deadline time.Time
}

// ReadSecret reads keys until Enter, abort or timeout. Nothing is echoed.
func (h *handle) ReadSecret(ctx context.Context, buf *security.Buffer) (pinentry.Outcome, error) {
	raw, err := h.dev.MakeRaw()
	if err != nil {
		return pinentry.OutcomeCancelled, err
	}
	defer func() { _ = raw.Restore() }()

	kr := terminal.NewKeyReader(h.dev)
	for {
		k, err := kr.ReadKey(ctx, h.deadline)
		if errors.Is(err, terminal.ErrTimeout) {
			h.line(i18n.TL(h.lang, "tty.timeout"))
			return pinentry.OutcomeTimedOut, nil
		}
		if err != nil {
			return pinentry.OutcomeCancelled, fmt.Errorf("read from terminal: %w", err)
		}
		switch k.Kind {
		case terminal.KeyEnter:
			h.line("")
			return pinentry.OutcomeEntered, nil
		case terminal.KeyRune:
			if err := buf.AppendRune(k.Rune); err != nil {
				h.line("")
				return pinentry.OutcomeCancelled, err
			}
		case terminal.KeyBackspace:
			buf.PopRune()
		case terminal.KeyKillLine:
			buf.Truncate()
		case terminal.KeyAbort:
			h.line(i18n.TL(h.lang, "tty.aborted"))
			return pinentry.OutcomeCancelled, nil
		}
	}
}

func (h *handle) line(s string) {
	_, _ = io.WriteString(h.dev, s+"\r\n")
}

func (h *handle) Close() error {
	return h.dev.Close()
}

// Confirm shows a numbered choice list.
func (b *Backend) Confirm(ctx context.Context, d pinentry.Dialog) (pinentry.Choice, error) {
	return b.dialog(ctx, d)
}

// Message shows d with its single button.
func (b *Backend) Message(ctx context.Context, d pinentry.Dialog) (pinentry.Choice, error) {
	return b.dialog(ctx, d)
}

type option struct {
	button   pinentry.Button
	mnemonic rune // as it appears in the label; zero if none
}

func options(buttons []pinentry.Button) []option {
	ms := pinentry.Mnemonics(buttons)
	opts := make([]option, len(buttons))
	for i, btn := range buttons {
		opts[i] = option{button: btn, mnemonic: ms[i]}
	}
	return opts
}

func (o option) render() string {
	if o.mnemonic == 0 {
		return o.button.Label
	}
	left, right, _ := strings.Cut(o.button.Label, string(o.mnemonic))
	return left + underline + string(o.mnemonic) + noUnderline + right
}

func (b *Backend) dialog(ctx context.Context, d pinentry.Dialog) (pinentry.Choice, error) {
	if len(d.Buttons) == 0 || len(d.Buttons) > 9 {
		return pinentry.ChoiceCancelled, fmt.Errorf("dialog needs 1 to 9 options, got %d", len(d.Buttons))
	}
	dev, err := b.device(d.TTY)
	if err != nil {
		return pinentry.ChoiceCancelled, err
	}
	defer func() { _ = dev.Close() }()

	opts := options(d.Buttons)
	var sb strings.Builder
	header(&sb, d.Lang, d.Error, d.Title, d.Description)
	var keys strings.Builder
	for i, o := range opts {
		fmt.Fprintf(&sb, "  %s%d%s %s\r\n", underline, i+1, noUnderline, o.render())
		fmt.Fprintf(&keys, "%d", i+1)
	}
	for _, o := range opts {
		if o.mnemonic != 0 {
			keys.WriteRune(unicode.ToLower(o.mnemonic))
		}
	}
	sb.WriteString(i18n.TL(d.Lang, "tty.type_hint", keys.String()))
	if _, err := io.WriteString(dev, sb.String()); err != nil {
		return pinentry.ChoiceCancelled, fmt.Errorf("write to terminal: %w", err)
	}

	raw, err := dev.MakeRaw()
	if err != nil {
		return pinentry.ChoiceCancelled, err
	}
	defer func() { _ = raw.Restore() }()

	deadline := terminal.Deadline(d.Timeout)
	kr := terminal.NewKeyReader(dev)
	for {
		k, err := kr.ReadKey(ctx, deadline)
		if errors.Is(err, terminal.ErrTimeout) {
			_, _ = io.WriteString(dev, i18n.TL(d.Lang, "tty.timeout")+"\r\n")
			return pinentry.ChoiceTimedOut, nil
		}
		if err != nil {
			return pinentry.ChoiceCancelled, fmt.Errorf("read from terminal: %w", err)
		}
		switch k.Kind {
		case terminal.KeyAbort:
			_, _ = io.WriteString(dev, i18n.TL(d.Lang, "tty.aborted")+"\r\n")
			return pinentry.ChoiceCancelled, nil
		case terminal.KeyRune:
			if o, ok := pick(opts, k.Rune); ok {
				_, _ = io.WriteString(dev, string(k.Rune)+"\r\n")
				return o.button.Choice, nil
			}
		}
	}
}

// pick matches a digit or a mnemonic letter, case-insensitively.
func pick(opts []option, r rune) (option, bool) {
	if r >= '1' && r <= '9' {
		i := int(r - '1')
		if i < len(opts) {
			return opts[i], true
		}
		return option{}, false
	}
	lr := unicode.ToLower(r)
	for _, o := range opts {
		if o.mnemonic != 0 && unicode.ToLower(o.mnemonic) == lr {
			return o, true
		}
	}
	return option{}, false
}
