// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
package assuan

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func readAll(t *testing.T, lr *LineReader) ([]string, error) {
	t.Helper()
	var lines []string
	for {
		line, err := lr.ReadLine()
		if err != nil {
			return lines, err
		}
		lines = append(lines, string(line))
	}
}

func TestLineReaderSplitsLines(t *testing.T) {
	lr := NewLineReader(strings.NewReader("SETPROMPT PIN:\nGETPIN\n\nBYE\n"))
	lines, err := readAll(t, lr)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	want := []string{"SETPROMPT PIN:", "GETPIN", "", "BYE"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", lines, want)
	}
}

func TestLineReaderOneByteReads(t *testing.T) {
	lr := NewLineReader(iotest.OneByteReader(strings.NewReader("NOP\nBYE\n")))
	lines, err := readAll(t, lr)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if len(lines) != 2 || lines[0] != "NOP" || lines[1] != "BYE" {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestLineReaderMaximumLine(t *testing.T) {
	line := strings.Repeat("a", MaxLineSize-1)
	lr := NewLineReader(strings.NewReader(line + "\nNOP\n"))
	got, err := lr.ReadLine()
	if err != nil {
		t.Fatalf("a line of exactly MaxLineSize bytes must be accepted: %v", err)
	}
	if len(got) != MaxLineSize-1 {
		t.Fatalf("got %d bytes", len(got))
	}
	got, err = lr.ReadLine()
	if err != nil || string(got) != "NOP" {
		t.Fatalf("expected NOP, got %q, %v", got, err)
	}
}

func TestLineReaderTooLong(t *testing.T) {
	lr := NewLineReader(strings.NewReader(strings.Repeat("a", MaxLineSize) + "\n"))
	if _, err := lr.ReadLine(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}

func TestLineReaderIncomplete(t *testing.T) {
	lr := NewLineReader(strings.NewReader("NOP\nGETP"))
	if line, err := lr.ReadLine(); err != nil || string(line) != "NOP" {
		t.Fatalf("expected NOP, got %q, %v", line, err)
	}
	if _, err := lr.ReadLine(); !errors.Is(err, ErrIncompleteLine) {
		t.Fatalf("expected ErrIncompleteLine, got %v", err)
	}
}

func TestLineReaderEmptyStream(t *testing.T) {
	lr := NewLineReader(strings.NewReader(""))
	if _, err := lr.ReadLine(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLineReaderZeroesConsumedBytes(t *testing.T) {
	lr := NewLineReader(strings.NewReader("SETDESC secret-ish\nNOP\n"))
	if _, err := lr.ReadLine(); err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if _, err := lr.ReadLine(); err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if bytes.Contains(lr.buf[:], []byte("secret-ish")) {
		t.Fatalf("consumed line still present in reader buffer")
	}
	lr.Wipe()
	if !bytes.Equal(lr.buf[:], make([]byte, MaxLineSize)) {
		t.Fatalf("Wipe left data behind")
	}
}

func TestLineReaderPropagatesReadErrors(t *testing.T) {
	boom := errors.New("boom")
	lr := NewLineReader(iotest.ErrReader(boom))
	if _, err := lr.ReadLine(); !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
}
