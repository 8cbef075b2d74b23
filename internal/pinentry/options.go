// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package pinentry

import (
	"strconv"
	"strings"
	"time"

	"github.com/toeirei/keymaster-pinentry/internal/assuan"
)

// Options are the values collected by SET* commands for the next request.
// The zero value means "all defaults".
type Options struct {
	Description string
	Prompt      string
	Title       string
	Error       string
	OKLabel     string
	NotOKLabel  string
	CancelLabel string
	KeyInfo     string

	Timeout    time.Duration
	HasTimeout bool

	Repeat       bool
	RepeatPrompt string
	RepeatError  string
}

// apply records a setter command. It reports false for commands that are
// not setters.
func (o *Options) apply(cmd assuan.Command) bool {
	switch cmd.Kind {
	case assuan.KindSetDescription:
		o.Description = cmd.Arg
	case assuan.KindSetPrompt:
		o.Prompt = cmd.Arg
	case assuan.KindSetTitle:
		o.Title = cmd.Arg
	case assuan.KindSetError:
		o.Error = cmd.Arg
	case assuan.KindSetOkLabel:
		o.OKLabel = cmd.Arg
	case assuan.KindSetNotOkLabel:
		o.NotOKLabel = cmd.Arg
	case assuan.KindSetCancelLabel:
		o.CancelLabel = cmd.Arg
	case assuan.KindSetKeyInfo:
		if cmd.Arg == "--clear" {
			o.KeyInfo = ""
		} else {
			o.KeyInfo = cmd.Arg
		}
	case assuan.KindSetTimeout:
		// A bare SETTIMEOUT restores the default; "0" means no timeout.
		o.Timeout = time.Duration(cmd.Seconds) * time.Second
		o.HasTimeout = strings.TrimSpace(cmd.Arg) != ""
	case assuan.KindSetRepeat:
		o.Repeat = true
		o.RepeatPrompt = cmd.Arg
	case assuan.KindSetRepeatError:
		o.RepeatError = cmd.Arg
	case assuan.KindSetQualityBar, assuan.KindSetQualityBarTooltip:
		// accepted, no quality bar on a terminal
	default:
		return false
	}
	return true
}

// Sticky holds what OPTION sets. It survives individual requests and RESET
// clears only the request options, so this lives for the connection.
type Sticky struct {
	TTY        TTY
	LCCtype    string
	LCMessages string

	DefaultOK     string
	DefaultCancel string
	DefaultNotOK  string
	DefaultPrompt string

	// MaxAttempts bounds consecutive retries; zero or less disables the
	// guard.
	MaxAttempts int

	attempts int
}

// Attempts reports the current run of consecutive retries.
func (s Sticky) Attempts() int { return s.attempts }

// setOption records an OPTION. Unknown keys are ignored and reported as
// such; a malformed value of a known key is an error.
func (s *Sticky) setOption(key, value string) (known bool, err error) {
	switch key {
	case "ttyname":
		s.TTY.Name = value
	case "ttytype":
		s.TTY.Type = value
	case "display":
		s.TTY.Display = value
	case "lc-ctype":
		s.LCCtype = value
	case "lc-messages":
		s.LCMessages = value
	case "default-ok":
		s.DefaultOK = value
	case "default-cancel":
		s.DefaultCancel = value
	case "default-notok":
		s.DefaultNotOK = value
	case "default-prompt":
		s.DefaultPrompt = value
	case "max-attempts":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return true, assuan.ErrInvalidValue
		}
		s.MaxAttempts = n
	default:
		return false, nil
	}
	return true, nil
}

// lang picks the UI language: LC_MESSAGES first, then LC_CTYPE.
func (s *Sticky) lang() string {
	if s.LCMessages != "" {
		return s.LCMessages
	}
	return s.LCCtype
}

// withTrailingSpace makes a prompt end in a space so input does not touch it.
func withTrailingSpace(s string) string {
	if s == "" || strings.HasSuffix(s, " ") {
		return s
	}
	return s + " "
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
