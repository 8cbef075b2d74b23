// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package assuan

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidValue is returned when a line or argument cannot be interpreted,
// for example a non-numeric SETTIMEOUT or a line that is not UTF-8.
var ErrInvalidValue = errors.New("invalid value")

// Kind identifies a parsed command.
type Kind int

const (
	KindUnknown Kind = iota
	KindSetDescription
	KindSetPrompt
	KindSetTitle
	KindSetError
	KindSetOkLabel
	KindSetNotOkLabel
	KindSetCancelLabel
	KindSetTimeout
	KindSetKeyInfo
	KindSetRepeat
	KindSetRepeatError
	KindSetQualityBar
	KindSetQualityBarTooltip
	KindOption
	KindGetPin
	KindConfirm
	KindMessage
	KindGetInfo
	KindReset
	KindNop
	KindBye
)

var verbs = map[string]Kind{
	"SETDESC":          KindSetDescription,
	"SETPROMPT":        KindSetPrompt,
	"SETTITLE":         KindSetTitle,
	"SETERROR":         KindSetError,
	"SETOK":            KindSetOkLabel,
	"SETNOTOK":         KindSetNotOkLabel,
	"SETCANCEL":        KindSetCancelLabel,
	"SETTIMEOUT":       KindSetTimeout,
	"SETKEYINFO":       KindSetKeyInfo,
	"SETREPEAT":        KindSetRepeat,
	"SETREPEATERROR":   KindSetRepeatError,
	"SETQUALITYBAR":    KindSetQualityBar,
	"SETQUALITYBAR_TT": KindSetQualityBarTooltip,
	"OPTION":           KindOption,
	"GETPIN":           KindGetPin,
	"CONFIRM":          KindConfirm,
	"MESSAGE":          KindMessage,
	"GETINFO":          KindGetInfo,
	"RESET":            KindReset,
	"NOP":              KindNop,
	"BYE":              KindBye,
}

// Command is one parsed request line. It is immutable once returned by
// ParseCommand.
type Command struct {
	Kind Kind
	// Verb is the verb as received.
	Verb string
	// Arg is the percent-decoded argument text.
	Arg string
	// HasArg distinguishes "SETDESC" (reset to default) from "SETDESC " (empty).
	HasArg bool

	// Key and Value are set for OPTION. Key is lower case with any leading
	// "--" removed.
	Key   string
	Value string

	// Seconds is set for SETTIMEOUT.
	Seconds int

	// OneButton is set for "CONFIRM --one-button".
	OneButton bool
}

// IsSetter reports whether the command only records an option.
func (c Command) IsSetter() bool {
	return c.Kind >= KindSetDescription && c.Kind <= KindOption
}

// String renders the verb only; arguments may be sensitive and stay out of
// logs.
func (c Command) String() string {
	return c.Verb
}

// ParseCommand interprets one line (without newline). Comment and empty
// lines are the caller's business: ParseCommand treats them as unknown.
func ParseCommand(line []byte) (Command, error) {
	if !utf8.Valid(line) {
		return Command{}, ErrInvalidValue
	}
	text := string(line)
	verb, rawArg, hasArg := strings.Cut(text, " ")

	cmd := Command{Kind: verbs[verb], Verb: verb, HasArg: hasArg}
	if hasArg {
		arg, err := UnescapeString(rawArg)
		if err != nil {
			return Command{Kind: cmd.Kind, Verb: verb}, err
		}
		cmd.Arg = arg
	}

	switch cmd.Kind {
	case KindSetTimeout:
		s := strings.TrimSpace(cmd.Arg)
		if s == "" {
			break
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return cmd, ErrInvalidValue
		}
		cmd.Seconds = n
	case KindOption:
		cmd.Key, cmd.Value = splitOption(cmd.Arg)
	case KindConfirm:
		cmd.OneButton = strings.TrimSpace(cmd.Arg) == "--one-button"
	}
	return cmd, nil
}

func splitOption(arg string) (string, string) {
	arg = strings.TrimLeft(arg, " ")
	arg = strings.TrimPrefix(arg, "--")
	i := strings.IndexAny(arg, "= ")
	if i < 0 {
		return strings.ToLower(arg), ""
	}
	key := strings.ToLower(arg[:i])
	value := strings.TrimLeft(arg[i+1:], " ")
	return key, value
}

// IsComment reports whether the line is to be skipped: empty lines and lines
// starting with '#'.
func IsComment(line []byte) bool {
	return len(line) == 0 || line[0] == '#'
}
