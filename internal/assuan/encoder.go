// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package assuan

import (
	"io"
	"strconv"
)

// Encoder writes response lines. Every line is assembled in a fixed array
// owned by the encoder and handed to the writer in a single call, so there
// is no intermediate buffer that could keep a copy of data lines around.
type Encoder struct {
	w    io.Writer
	line [MaxLineSize]byte
	n    int
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// OK writes "OK" or "OK <comment>".
func (e *Encoder) OK(comment string) error {
	e.reset("OK")
	if comment != "" {
		e.appendText(" ", comment)
	}
	return e.flush(false)
}

// Err writes "ERR <code> <message>".
func (e *Encoder) Err(er Error) error {
	e.reset("ERR ")
	e.appendRaw(strconv.FormatUint(uint64(er.Code), 10))
	if er.Message != "" {
		e.appendText(" ", er.Message)
	}
	return e.flush(false)
}

// Comment writes "# <text>".
func (e *Encoder) Comment(text string) error {
	e.reset("#")
	if text != "" {
		e.appendText(" ", text)
	}
	return e.flush(false)
}

// Status writes "S <keyword> [args]".
func (e *Encoder) Status(keyword, args string) error {
	e.reset("S ")
	e.appendRaw(keyword)
	if args != "" {
		e.appendText(" ", args)
	}
	return e.flush(false)
}

// Data writes p as one or more "D " lines. An escape sequence is never split
// across lines. The line array is zeroed after every line.
func (e *Encoder) Data(p []byte) error {
	e.reset("D ")
	for _, c := range p {
		if e.n+escapedLen(c) > len(e.line)-1 {
			if err := e.flush(true); err != nil {
				return err
			}
			e.reset("D ")
		}
		e.putEscaped(c)
	}
	return e.flush(true)
}

func (e *Encoder) reset(prefix string) {
	e.n = copy(e.line[:], prefix)
}

func (e *Encoder) appendRaw(s string) {
	e.n += copy(e.line[e.n:len(e.line)-1], s)
}

// appendText escapes s after sep and silently cuts what does not fit.
func (e *Encoder) appendText(sep, s string) {
	e.appendRaw(sep)
	for i := 0; i < len(s); i++ {
		if e.n+escapedLen(s[i]) > len(e.line)-1 {
			return
		}
		e.putEscaped(s[i])
	}
}

func (e *Encoder) putEscaped(c byte) {
	if needsEscape(c) {
		e.line[e.n] = '%'
		e.line[e.n+1] = hexDigits[c>>4]
		e.line[e.n+2] = hexDigits[c&0x0f]
		e.n += 3
		return
	}
	e.line[e.n] = c
	e.n++
}

func (e *Encoder) flush(wipe bool) error {
	e.line[e.n] = '\n'
	_, err := e.w.Write(e.line[:e.n+1])
	if wipe {
		clear(e.line[:e.n+1])
	}
	e.n = 0
	return err
}
