// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package assuan

import (
	"bytes"
	"errors"
	"io"
)

var (
	// ErrLineTooLong is returned when no newline shows up within MaxLineSize bytes.
	ErrLineTooLong = errors.New("line is too long")
	// ErrIncompleteLine is returned when the stream ends in the middle of a line.
	ErrIncompleteLine = errors.New("incomplete line")
)

// LineReader splits a stream into lines of at most MaxLineSize bytes
// without ever buffering more than that. Bytes of a consumed line are
// zeroed before the next read.
type LineReader struct {
	r        io.Reader
	buf      [MaxLineSize]byte
	filled   int
	consumed int
}

// NewLineReader returns a LineReader reading from r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r}
}

// ReadLine returns the next line without its trailing newline. The slice is
// valid until the following call. io.EOF signals a clean end of stream.
func (lr *LineReader) ReadLine() ([]byte, error) {
	lr.discardConsumed()

	if i := bytes.IndexByte(lr.buf[:lr.filled], '\n'); i >= 0 {
		lr.consumed = i + 1
		return lr.buf[:i], nil
	}

	for lr.filled < len(lr.buf) {
		n, err := lr.r.Read(lr.buf[lr.filled:])
		start := lr.filled
		lr.filled += n
		if i := bytes.IndexByte(lr.buf[start:lr.filled], '\n'); i >= 0 {
			end := start + i
			lr.consumed = end + 1
			return lr.buf[:end], nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if lr.filled == 0 {
					return nil, io.EOF
				}
				return nil, ErrIncompleteLine
			}
			return nil, err
		}
	}
	return nil, ErrLineTooLong
}

// Wipe zeroes everything still held.
func (lr *LineReader) Wipe() {
	clear(lr.buf[:])
	lr.filled, lr.consumed = 0, 0
}

func (lr *LineReader) discardConsumed() {
	if lr.consumed == 0 {
		return
	}
	rest := copy(lr.buf[:], lr.buf[lr.consumed:lr.filled])
	clear(lr.buf[rest:lr.filled])
	lr.filled = rest
	lr.consumed = 0
}
