// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package security

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrBufferFull is returned when a write would need more room than the
// buffer was created with. Buffers never grow: growing would leave a partial
// copy of the secret behind in the old allocation.
var ErrBufferFull = errors.New("secure buffer is full")

// Buffer is a fixed-capacity container for secret bytes (a PIN or
// passphrase as typed by the user). All edits happen in place and Release
// zeroes the complete backing array.
//
// A Buffer has no textual rendering: every fmt verb, JSON and text
// marshaling produce "[SECRET]". It is not comparable with ==; use Equal.
type Buffer struct {
	_      [0]func() // not comparable
	data   []byte
	n      int
	locked bool
}

// NewBuffer allocates a buffer able to hold capacity bytes. The backing
// memory is locked into RAM when the platform allows it.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	b := &Buffer{data: make([]byte, capacity)}
	b.locked = lockMemory(b.data)
	return b
}

// WithBuffer allocates a buffer, hands it to fn and releases it afterwards,
// whether fn returns normally, returns an error or panics.
func WithBuffer(capacity int, fn func(*Buffer) error) error {
	b := NewBuffer(capacity)
	defer b.Release()
	return fn(b)
}

// Len reports the number of bytes held.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// Cap reports the fixed capacity.
func (b *Buffer) Cap() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// RuneCount reports the number of UTF-8 encoded runes held.
func (b *Buffer) RuneCount() int {
	if b == nil {
		return 0
	}
	return utf8.RuneCount(b.data[:b.n])
}

// Use calls fn with the live contents (not a copy). fn must not retain the
// slice past its return.
func (b *Buffer) Use(fn func([]byte) error) error {
	if b == nil {
		return fn(nil)
	}
	return fn(b.data[:b.n])
}

// Write appends p. It satisfies io.Writer so the buffer can be the target of
// a copy without an intermediate allocation.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.n+len(p) > len(b.data) {
		return 0, ErrBufferFull
	}
	copy(b.data[b.n:], p)
	b.n += len(p)
	return len(p), nil
}

// AppendRune appends the UTF-8 encoding of r.
func (b *Buffer) AppendRune(r rune) error {
	return b.InsertRune(b.RuneCount(), r)
}

// InsertRune inserts r before the rune at index pos. A pos beyond the end
// appends.
func (b *Buffer) InsertRune(pos int, r rune) error {
	var enc [utf8.UTFMax]byte
	w := utf8.EncodeRune(enc[:], r)
	defer clear(enc[:])
	if b.n+w > len(b.data) {
		return ErrBufferFull
	}
	off := b.byteOffset(pos)
	copy(b.data[off+w:b.n+w], b.data[off:b.n])
	copy(b.data[off:], enc[:w])
	b.n += w
	return nil
}

// DeleteRune removes the rune at index pos and zeroes the freed tail.
// It reports whether a rune was removed.
func (b *Buffer) DeleteRune(pos int) bool {
	if b == nil || pos < 0 || pos >= b.RuneCount() {
		return false
	}
	off := b.byteOffset(pos)
	_, w := utf8.DecodeRune(b.data[off:b.n])
	copy(b.data[off:], b.data[off+w:b.n])
	clear(b.data[b.n-w : b.n])
	b.n -= w
	return true
}

// PopRune removes the last rune.
func (b *Buffer) PopRune() bool {
	return b.DeleteRune(b.RuneCount() - 1)
}

// Truncate drops everything and zeroes the used part of the storage. The
// buffer stays usable.
func (b *Buffer) Truncate() {
	if b == nil {
		return
	}
	clear(b.data[:b.n])
	b.n = 0
}

// Equal compares the contents of two buffers in constant time with respect
// to the contents.
func (b *Buffer) Equal(other *Buffer) bool {
	if b == nil || other == nil {
		return b.Len() == other.Len()
	}
	return subtle.ConstantTimeCompare(b.data[:b.n], other.data[:other.n]) == 1
}

// Release zeroes the whole backing array, including bytes beyond the
// current length, and unlocks it. It is safe to call more than once and on
// a nil buffer.
func (b *Buffer) Release() {
	if b == nil || b.data == nil {
		return
	}
	clear(b.data)
	if b.locked {
		unlockMemory(b.data)
		b.locked = false
	}
	b.n = 0
}

// Zeroed reports whether every byte of the backing array is zero.
func (b *Buffer) Zeroed() bool {
	if b == nil {
		return true
	}
	var acc byte
	for _, c := range b.data {
		acc |= c
	}
	return acc == 0
}

func (b *Buffer) byteOffset(pos int) int {
	if pos <= 0 {
		return 0
	}
	off := 0
	for i := 0; i < pos && off < b.n; i++ {
		_, w := utf8.DecodeRune(b.data[off:b.n])
		off += w
	}
	return off
}

// String redacts the contents.
func (b *Buffer) String() string { return redacted }

// GoString redacts %#v output.
func (b *Buffer) GoString() string { return redacted }

// Format implements fmt.Formatter so no verb can print the contents.
func (b *Buffer) Format(f fmt.State, c rune) {
	_, _ = io.WriteString(f, redacted)
}

// MarshalJSON redacts the contents.
func (b *Buffer) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// MarshalText redacts the contents.
func (b *Buffer) MarshalText() ([]byte, error) { return []byte(redacted), nil }
