// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package testutil

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/toeirei/keymaster-pinentry/internal/terminal"
)

// FakeTTY is an in-memory terminal.Device. Input is scripted as chunks:
// each chunk becomes readable only after the previous one is drained and a
// Poll call has come back empty, which is how a pause between keys looks.
type FakeTTY struct {
	mu       sync.Mutex
	chunks   [][]byte
	out      bytes.Buffer
	raw      bool
	rawCalls int
	restores int
	closed   bool
	// MakeRawErr, if set, is returned by MakeRaw.
	MakeRawErr error
}

// NewFakeTTY returns a fake terminal that will deliver the given chunks.
func NewFakeTTY(chunks ...string) *FakeTTY {
	f := &FakeTTY{}
	for _, c := range chunks {
		f.chunks = append(f.chunks, []byte(c))
	}
	return f
}

func (f *FakeTTY) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chunks) == 0 || len(f.chunks[0]) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[0])
	f.chunks[0] = f.chunks[0][n:]
	return n, nil
}

func (f *FakeTTY) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Write(p)
}

// Poll reports input when the current chunk has bytes left. Otherwise it
// waits d, moves on to the next chunk and reports none.
func (f *FakeTTY) Poll(d time.Duration) (bool, error) {
	f.mu.Lock()
	if len(f.chunks) > 0 && len(f.chunks[0]) > 0 {
		f.mu.Unlock()
		return true, nil
	}
	if len(f.chunks) > 0 {
		f.chunks = f.chunks[1:]
	}
	f.mu.Unlock()
	time.Sleep(d)
	return false, nil
}

type fakeRestorer struct {
	f    *FakeTTY
	once sync.Once
}

func (r *fakeRestorer) Restore() error {
	r.once.Do(func() {
		r.f.mu.Lock()
		r.f.raw = false
		r.f.restores++
		r.f.mu.Unlock()
	})
	return nil
}

// MakeRaw records the mode change.
func (f *FakeTTY) MakeRaw() (terminal.Restorer, error) {
	if f.MakeRawErr != nil {
		return nil, f.MakeRawErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = true
	f.rawCalls++
	return &fakeRestorer{f: f}, nil
}

func (f *FakeTTY) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Output returns everything written so far.
func (f *FakeTTY) Output() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.String()
}

// Raw reports whether the terminal is still in raw mode.
func (f *FakeTTY) Raw() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw
}

// RawCalls reports how often MakeRaw was called.
func (f *FakeTTY) RawCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rawCalls
}

// Closed reports whether Close was called.
func (f *FakeTTY) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
