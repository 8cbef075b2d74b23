// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
package assuan

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncoderLines(t *testing.T) {
	var out bytes.Buffer
	enc := NewEncoder(&out)
	codes := DefaultCodes()

	steps := []func() error{
		func() error { return enc.OK("") },
		func() error { return enc.OK("Pleased to meet you, process 42") },
		func() error { return enc.Err(codes.Get(ErrorCancelled)) },
		func() error { return enc.Comment("debug 100%") },
		func() error { return enc.Status("PIN_REPEATED", "") },
		func() error { return enc.Data([]byte("12%34\n")) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	want := "OK\n" +
		"OK Pleased to meet you, process 42\n" +
		"ERR 83886179 Operation cancelled\n" +
		"# debug 100%25\n" +
		"S PIN_REPEATED\n" +
		"D 12%2534%0A\n"
	if out.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", out.String(), want)
	}
}

func TestEncoderSplitsLongData(t *testing.T) {
	var out bytes.Buffer
	enc := NewEncoder(&out)
	payload := bytes.Repeat([]byte("%a"), 800)
	if err := enc.Data(payload); err != nil {
		t.Fatalf("Data: %v", err)
	}

	var decoded []byte
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected the payload to be split, got %d line(s)", len(lines))
	}
	for _, line := range lines {
		if len(line)+1 > MaxLineSize {
			t.Fatalf("line of %d bytes exceeds the limit", len(line)+1)
		}
		if !strings.HasPrefix(line, "D ") {
			t.Fatalf("unexpected line %q", line)
		}
		part, err := UnescapeString(line[2:])
		if err != nil {
			t.Fatalf("escape sequence split across lines: %v", err)
		}
		decoded = append(decoded, part...)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("payload corrupted by splitting")
	}
}

func TestEncoderWipesDataLine(t *testing.T) {
	var out bytes.Buffer
	enc := NewEncoder(&out)
	if err := enc.Data([]byte("hunter2")); err != nil {
		t.Fatalf("Data: %v", err)
	}
	if bytes.Contains(enc.line[:], []byte("hunter2")) {
		t.Fatalf("encoder kept the data line")
	}
}

func TestEncoderTruncatesLongText(t *testing.T) {
	var out bytes.Buffer
	enc := NewEncoder(&out)
	if err := enc.Err(Error{Code: 1, Message: strings.Repeat("x", 2*MaxLineSize)}); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if out.Len() != MaxLineSize || !strings.HasSuffix(out.String(), "x\n") {
		t.Fatalf("expected a single line of %d bytes, got %d", MaxLineSize, out.Len())
	}
}
