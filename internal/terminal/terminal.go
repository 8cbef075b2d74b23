// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package terminal opens the user's tty and provides the small set of
// primitives both backends build on: scoped raw mode, input polling with a
// deadline and decoding of raw input bytes into keys.
//
// The tty is always opened separately. The protocol stream may well be
// stdin/stdout, so it is never used for interaction.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var (
	// ErrNotTerminal is returned by Open when the device is not a tty.
	ErrNotTerminal = errors.New("not a terminal")
	// ErrTimeout is returned when a deadline passes before input arrives.
	ErrTimeout = errors.New("timed out waiting for input")
)

// pollSlice bounds a single wait so deadlines and cancellation are noticed
// promptly.
const pollSlice = 100 * time.Millisecond

// Device is what the backends need from a terminal. *TTY implements it;
// tests use in-memory fakes.
type Device interface {
	io.Reader
	io.Writer
	// Poll waits at most d for input and reports whether a read would not
	// block.
	Poll(d time.Duration) (bool, error)
	// MakeRaw switches the device to raw mode until the Restorer is used.
	MakeRaw() (Restorer, error)
	Close() error
}

// Restorer undoes a mode change. Restore is idempotent.
type Restorer interface {
	Restore() error
}

// TTY is an opened terminal.
type TTY struct {
	name string
	in   *os.File
	out  *os.File
}

// Open opens the terminal at name, or the controlling terminal when name
// is empty.
func Open(name string) (*TTY, error) {
	in, out, err := openDevice(name)
	if err != nil {
		return nil, fmt.Errorf("open terminal %q: %w", displayName(name), err)
	}
	t := &TTY{name: displayName(name), in: in, out: out}
	if !term.IsTerminal(int(in.Fd())) {
		_ = t.Close()
		return nil, fmt.Errorf("open terminal %q: %w", t.name, ErrNotTerminal)
	}
	return t, nil
}

// Name returns the device path.
func (t *TTY) Name() string { return t.name }

// In returns the input side, for libraries that manage raw mode on their
// own.
func (t *TTY) In() *os.File { return t.in }

// Out returns the output side.
func (t *TTY) Out() *os.File { return t.out }

func (t *TTY) Read(p []byte) (int, error)  { return t.in.Read(p) }
func (t *TTY) Write(p []byte) (int, error) { return t.out.Write(p) }

// Poll implements Device.
func (t *TTY) Poll(d time.Duration) (bool, error) {
	return pollReadable(t.in, d)
}

// MakeRaw implements Device.
func (t *TTY) MakeRaw() (Restorer, error) {
	return EnterRaw(t.in)
}

// Size reports the terminal width and height.
func (t *TTY) Size() (int, int, error) {
	return term.GetSize(int(t.out.Fd()))
}

// Close closes both sides of the terminal.
func (t *TTY) Close() error {
	err := t.in.Close()
	if t.out != t.in {
		if cerr := t.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type rawState struct {
	fd    int
	state *term.State
	once  sync.Once
	err   error
}

func (r *rawState) Restore() error {
	r.once.Do(func() {
		r.err = term.Restore(r.fd, r.state)
	})
	return r.err
}

// EnterRaw puts f into raw mode. Callers defer Restore right away.
func EnterRaw(f *os.File) (Restorer, error) {
	fd := int(f.Fd())
	st, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}
	return &rawState{fd: fd, state: st}, nil
}

// WaitReadable blocks until dev has input, ctx is done or deadline passes.
// A zero deadline waits indefinitely. Waiting happens in slices of at most
// 100ms.
func WaitReadable(ctx context.Context, dev Device, deadline time.Time) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		slice := pollSlice
		if !deadline.IsZero() {
			rem := time.Until(deadline)
			if rem <= 0 {
				return ErrTimeout
			}
			slice = min(slice, rem)
		}
		ok, err := dev.Poll(slice)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// Deadline turns a timeout into an absolute deadline; zero means none.
func Deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
