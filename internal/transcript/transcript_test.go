// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package transcript

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type pipeRW struct {
	in  *strings.Reader
	out bytes.Buffer
}

func (p *pipeRW) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipeRW) Write(b []byte) (int, error) { return p.out.Write(b) }

func TestRecorder_RedactsData(t *testing.T) {
	var log bytes.Buffer
	r := New(&log)
	rw := &pipeRW{in: strings.NewReader("SETPROMPT PIN:\nGETPIN\n")}
	c := r.Wrap(rw)

	if _, err := io.ReadAll(c); err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, line := range []string{"OK Pleased to meet you\n", "OK\n", "D 1234\n", "OK\n"} {
		if _, err := io.WriteString(c, line); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if rw.out.String() != "OK Pleased to meet you\nOK\nD 1234\nOK\n" {
		t.Fatalf("stream altered: %q", rw.out.String())
	}
	got := log.String()
	if strings.Contains(got, "1234") {
		t.Fatalf("secret leaked into transcript: %q", got)
	}
	for _, want := range []string{"C: SETPROMPT PIN:\n", "C: GETPIN\n", "S: OK Pleased to meet you\n", "S: D [SECRET]\n"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestSplitter_Chunked(t *testing.T) {
	var log bytes.Buffer
	r := New(&log)
	c := r.Wrap(&pipeRW{in: strings.NewReader("")})

	// A data line split across writes is still redacted.
	for _, chunk := range []string{"D 12", "34\nO", "K\n"} {
		if _, err := io.WriteString(c, chunk); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := log.String(); got != "S: D [SECRET]\nS: OK\n" {
		t.Fatalf("unexpected transcript %q", got)
	}
	for _, b := range r.server.buf {
		if b != 0 {
			t.Fatalf("splitter buffer not zeroed")
		}
	}
}

func TestSplitter_DataPrefixOnly(t *testing.T) {
	cases := map[string]bool{"D": true, "D x": true, "DATA": false, "OK": false, "": false}
	for in, want := range cases {
		if got := isData([]byte(in)); got != want {
			t.Fatalf("isData(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRecorder_MarkFlushesPartial(t *testing.T) {
	var log bytes.Buffer
	r := New(&log)
	c := r.Wrap(&pipeRW{in: strings.NewReader("")})
	_, _ = io.WriteString(c, "OK partial")
	r.Mark("session 2")
	want := "S: OK partial\n-- session 2\n"
	if log.String() != want {
		t.Fatalf("got %q, want %q", log.String(), want)
	}
}

func TestOpen_FileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.log")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r.Mark("hello")
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", st.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "-- hello\n" {
		t.Fatalf("unexpected content %q", data)
	}
}
