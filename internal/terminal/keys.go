// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package terminal

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"
)

// KeyKind classifies a decoded key press.
type KeyKind int

const (
	KeyUnknown KeyKind = iota
	KeyRune
	KeyEnter
	KeyBackspace
	KeyDelete
	// KeyAbort covers Ctrl-C, Ctrl-D, Esc and NUL.
	KeyAbort
	KeyKillLine
	KeyKillWord
	KeyTab
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
)

// Key is one key press. Rune is set for KeyRune only.
type Key struct {
	Kind KeyKind
	Rune rune
}

// escWait is how long a lone Esc waits for the rest of a sequence.
const escWait = 25 * time.Millisecond

// KeyReader decodes raw terminal input. It reads byte by byte so that no
// input beyond the current key is ever buffered.
type KeyReader struct {
	dev Device
}

// NewKeyReader returns a KeyReader on dev, which should be in raw mode.
func NewKeyReader(dev Device) *KeyReader {
	return &KeyReader{dev: dev}
}

// ReadKey waits for the next key. It returns ErrTimeout once deadline
// passes (zero means no deadline) and ctx.Err() when ctx is done. Keys
// that carry no meaning here are returned as KeyUnknown.
func (kr *KeyReader) ReadKey(ctx context.Context, deadline time.Time) (Key, error) {
	if err := WaitReadable(ctx, kr.dev, deadline); err != nil {
		return Key{}, err
	}
	c, err := kr.readByte()
	if err != nil {
		return Key{}, err
	}
	switch c {
	case '\r', '\n':
		return Key{Kind: KeyEnter}, nil
	case 0x7f, 0x08:
		return Key{Kind: KeyBackspace}, nil
	case 0x00, 0x03, 0x04:
		return Key{Kind: KeyAbort}, nil
	case 0x15:
		return Key{Kind: KeyKillLine}, nil
	case 0x17:
		return Key{Kind: KeyKillWord}, nil
	case '\t':
		return Key{Kind: KeyTab}, nil
	case 0x01:
		return Key{Kind: KeyHome}, nil
	case 0x05:
		return Key{Kind: KeyEnd}, nil
	case 0x1b:
		return kr.escape(ctx)
	}
	if c < 0x20 {
		return Key{Kind: KeyUnknown}, nil
	}
	if c < utf8.RuneSelf {
		return Key{Kind: KeyRune, Rune: rune(c)}, nil
	}
	return kr.multibyte(ctx, c)
}

func (kr *KeyReader) readByte() (byte, error) {
	var b [1]byte
	for {
		n, err := kr.dev.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// pending reports whether more input follows within escWait.
func (kr *KeyReader) pending(ctx context.Context) bool {
	err := WaitReadable(ctx, kr.dev, time.Now().Add(escWait))
	return err == nil
}

func (kr *KeyReader) escape(ctx context.Context) (Key, error) {
	if !kr.pending(ctx) {
		return Key{Kind: KeyAbort}, nil
	}
	c, err := kr.readByte()
	if err != nil {
		return Key{}, err
	}
	if c != '[' && c != 'O' {
		// Alt+key; nothing uses it
		return Key{Kind: KeyUnknown}, nil
	}

	var seq [8]byte
	n := 0
	for n < len(seq) {
		if !kr.pending(ctx) {
			return Key{Kind: KeyUnknown}, nil
		}
		b, err := kr.readByte()
		if err != nil {
			return Key{}, err
		}
		seq[n] = b
		n++
		if b >= 0x40 && b <= 0x7e {
			break
		}
	}
	return Key{Kind: decodeCSI(string(seq[:n]))}, nil
}

func decodeCSI(seq string) KeyKind {
	switch seq {
	case "A":
		return KeyUp
	case "B":
		return KeyDown
	case "C":
		return KeyRight
	case "D":
		return KeyLeft
	case "H", "1~", "7~":
		return KeyHome
	case "F", "4~", "8~":
		return KeyEnd
	case "3~":
		return KeyDelete
	case "Z":
		return KeyTab
	}
	return KeyUnknown
}

func (kr *KeyReader) multibyte(ctx context.Context, first byte) (Key, error) {
	var enc [utf8.UTFMax]byte
	defer clear(enc[:])
	enc[0] = first
	n := 1
	for !utf8.FullRune(enc[:n]) && n < len(enc) {
		if !kr.pending(ctx) {
			return Key{Kind: KeyUnknown}, nil
		}
		c, err := kr.readByte()
		if err != nil {
			return Key{}, err
		}
		enc[n] = c
		n++
	}
	r, _ := utf8.DecodeRune(enc[:n])
	if r == utf8.RuneError {
		return Key{Kind: KeyUnknown}, nil
	}
	return Key{Kind: KeyRune, Rune: r}, nil
}

// IsClosed reports whether err means the terminal went away.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
