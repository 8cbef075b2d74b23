// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package assuan

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorKind names a distinguished failure reported to the caller.
type ErrorKind int

const (
	ErrorGeneral ErrorKind = iota
	ErrorCancelled
	ErrorTimeout
	ErrorNotConfirmed
	ErrorUnknownCommand
	ErrorLineTooLong
	ErrorIncompleteLine
	ErrorParameter
	ErrorInvalidValue
	ErrorInternal
	ErrorTooLarge
	ErrorTooManyAttempts
)

// Error is what goes out on an ERR line.
type Error struct {
	Code    uint32
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// gpg-error encodes the error source in the top byte; 5 is "pinentry".
const sourcePinentry = 5 << 24

type codeEntry struct {
	name  string
	kind  ErrorKind
	value Error
}

// defaultCodes follows the gpg-error numbering callers already understand.
var defaultCodes = []codeEntry{
	{"general", ErrorGeneral, Error{sourcePinentry | 1, "General error"}},
	{"cancelled", ErrorCancelled, Error{sourcePinentry | 99, "Operation cancelled"}},
	{"timeout", ErrorTimeout, Error{sourcePinentry | 62, "Timeout"}},
	{"not_confirmed", ErrorNotConfirmed, Error{sourcePinentry | 114, "Not confirmed"}},
	{"unknown_command", ErrorUnknownCommand, Error{sourcePinentry | 275, "Unknown IPC command"}},
	{"line_too_long", ErrorLineTooLong, Error{sourcePinentry | 263, "Line too long"}},
	{"incomplete_line", ErrorIncompleteLine, Error{sourcePinentry | 262, "Incomplete line"}},
	{"parameter", ErrorParameter, Error{sourcePinentry | 280, "IPC parameter error"}},
	{"invalid_value", ErrorInvalidValue, Error{sourcePinentry | 261, "Invalid value"}},
	{"internal", ErrorInternal, Error{sourcePinentry | 63, "Internal error"}},
	{"too_large", ErrorTooLarge, Error{sourcePinentry | 67, "Too large"}},
	{"too_many_attempts", ErrorTooManyAttempts, Error{sourcePinentry | 11, "Too many attempts"}},
}

// Codes maps error kinds to wire codes. The zero value is not usable; use
// DefaultCodes.
type Codes struct {
	byKind map[ErrorKind]Error
}

// DefaultCodes returns the built-in table.
func DefaultCodes() *Codes {
	c := &Codes{byKind: make(map[ErrorKind]Error, len(defaultCodes))}
	for _, e := range defaultCodes {
		c.byKind[e.kind] = e.value
	}
	return c
}

// Override replaces numeric codes by name (e.g. "cancelled": 83886179).
// Unknown names are rejected so typos in configuration surface early.
func (c *Codes) Override(codes map[string]uint32) error {
	var unknown []string
	for name, code := range codes {
		kind, ok := kindByName(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		e := c.byKind[kind]
		e.Code = code
		c.byKind[kind] = e
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown error code names: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Get returns the wire error for kind.
func (c *Codes) Get(kind ErrorKind) Error {
	if c == nil {
		return DefaultCodes().Get(kind)
	}
	if e, ok := c.byKind[kind]; ok {
		return e
	}
	return c.byKind[ErrorGeneral]
}

// WithMessage returns the wire error for kind carrying a custom message.
func (c *Codes) WithMessage(kind ErrorKind, msg string) Error {
	e := c.Get(kind)
	e.Message = msg
	return e
}

// Names lists the configurable names in table order.
func Names() []string {
	out := make([]string, 0, len(defaultCodes))
	for _, e := range defaultCodes {
		out = append(out, e.name)
	}
	return out
}

func kindByName(name string) (ErrorKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, e := range defaultCodes {
		if e.name == name {
			return e.kind, true
		}
	}
	return 0, false
}
