// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package assuan

import "errors"

// ErrMalformedEscape is returned for a '%' not followed by two uppercase hex
// digits.
var ErrMalformedEscape = errors.New("malformed percent encoding")

const hexDigits = "0123456789ABCDEF"

// needsEscape reports whether c has to travel as %XX.
func needsEscape(c byte) bool {
	return c == '%' || c == '\\' || c < 0x20 || c == 0x7f
}

// escapedLen is the number of bytes c occupies on the wire.
func escapedLen(c byte) int {
	if needsEscape(c) {
		return 3
	}
	return 1
}

// AppendEscaped appends the wire form of src to dst.
func AppendEscaped(dst, src []byte) []byte {
	for _, c := range src {
		if needsEscape(c) {
			dst = append(dst, '%', hexDigits[c>>4], hexDigits[c&0x0f])
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

// Escape returns the wire form of s.
func Escape(s string) string {
	return string(AppendEscaped(nil, []byte(s)))
}

// Unescape decodes %XX sequences in src. Hex digits must be uppercase.
func Unescape(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c != '%' {
			out = append(out, c)
			continue
		}
		if i+2 >= len(src) {
			return nil, ErrMalformedEscape
		}
		hi, ok1 := fromHex(src[i+1])
		lo, ok2 := fromHex(src[i+2])
		if !ok1 || !ok2 {
			return nil, ErrMalformedEscape
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

// UnescapeString is Unescape for text arguments.
func UnescapeString(s string) (string, error) {
	b, err := Unescape([]byte(s))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
