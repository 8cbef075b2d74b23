// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package transcript records the protocol exchange of a connection for
// debugging client integrations. Data lines are replaced by a placeholder
// before anything reaches the file.
package transcript

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/toeirei/keymaster-pinentry/internal/assuan"
)

// Redacted replaces the payload of every D line.
const Redacted = "D [SECRET]"

// Recorder appends "C: " (client) and "S: " (server) lines to a writer.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	client splitter
	server splitter
}

// Open appends to the file at path, creating it with mode 0600.
func Open(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	r := New(f)
	r.closer = f
	return r, nil
}

// New records to w.
func New(w io.Writer) *Recorder {
	return &Recorder{
		w:      w,
		client: splitter{prefix: "C: "},
		server: splitter{prefix: "S: "},
	}
}

// Mark writes a separator line such as the start of a new session. Partial
// lines of the previous connection are flushed first.
func (r *Recorder) Mark(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client.flush(r.w)
	r.server.flush(r.w)
	_, _ = io.WriteString(r.w, "-- "+text+"\n")
}

// Close flushes partial lines and closes the file opened by Open.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client.flush(r.w)
	r.server.flush(r.w)
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Wrap returns rw with both directions recorded.
func (r *Recorder) Wrap(rw io.ReadWriter) io.ReadWriter {
	return &conn{rw: rw, r: r}
}

func (r *Recorder) feed(s *splitter, p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.feed(r.w, p)
}

type conn struct {
	rw io.ReadWriter
	r  *Recorder
}

func (c *conn) Read(p []byte) (int, error) {
	n, err := c.rw.Read(p)
	if n > 0 {
		c.r.feed(&c.r.client, p[:n])
	}
	return n, err
}

func (c *conn) Write(p []byte) (int, error) {
	n, err := c.rw.Write(p)
	if n > 0 {
		c.r.feed(&c.r.server, p[:n])
	}
	return n, err
}

// splitter reassembles lines from arbitrary chunks. Its buffer never grows
// past one protocol line and is zeroed after every emitted line.
type splitter struct {
	prefix string
	buf    [assuan.MaxLineSize]byte
	n      int
}

func (s *splitter) feed(w io.Writer, p []byte) {
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		chunk := p
		if i >= 0 {
			chunk = p[:i]
		}
		room := len(s.buf) - s.n
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		s.n += copy(s.buf[s.n:], chunk)
		p = p[len(chunk):]
		switch {
		case i >= 0 && len(p) > 0 && p[0] == '\n':
			s.emit(w)
			p = p[1:]
		case s.n == len(s.buf):
			s.emit(w)
		}
	}
}

func (s *splitter) flush(w io.Writer) {
	if s.n > 0 {
		s.emit(w)
	}
}

func (s *splitter) emit(w io.Writer) {
	line := s.buf[:s.n]
	out := make([]byte, 0, len(s.prefix)+len(Redacted)+1)
	out = append(out, s.prefix...)
	if isData(line) {
		out = append(out, Redacted...)
	} else {
		out = append(out, line...)
	}
	out = append(out, '\n')
	_, _ = w.Write(out)
	clear(s.buf[:s.n])
	s.n = 0
}

func isData(line []byte) bool {
	return len(line) >= 1 && line[0] == 'D' && (len(line) == 1 || line[1] == ' ')
}
