// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package pinentry

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/toeirei/keymaster-pinentry/internal/security"
)

// Outcome is the result of reading one secret.
type Outcome int

const (
	OutcomeEntered Outcome = iota
	OutcomeCancelled
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEntered:
		return "entered"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timeout"
	}
	return "unknown"
}

// Choice is the result of a dialog.
type Choice int

const (
	ChoiceYes Choice = iota
	ChoiceNo
	ChoiceCancelled
	ChoiceTimedOut
)

func (c Choice) String() string {
	switch c {
	case ChoiceYes:
		return "yes"
	case ChoiceNo:
		return "no"
	case ChoiceCancelled:
		return "cancelled"
	case ChoiceTimedOut:
		return "timeout"
	}
	return "unknown"
}

// TTY identifies the terminal the client asked us to use. Empty fields mean
// "use the default".
type TTY struct {
	Name    string
	Type    string
	Display string
}

// Prompt is everything a backend needs to ask for a secret.
type Prompt struct {
	Title       string
	Description string
	// Prompt is shown right before the input field and ends in a space.
	Prompt  string
	Error   string
	KeyInfo string
	OK      Button
	Cancel  Button
	// Timeout of zero means wait forever.
	Timeout time.Duration
	TTY     TTY
	// Lang is the locale for strings the backend renders itself.
	Lang string
}

// Dialog describes a CONFIRM or MESSAGE request. Buttons holds one to three
// entries, OK first.
type Dialog struct {
	Title       string
	Description string
	Error       string
	Buttons     []Button
	Timeout     time.Duration
	TTY         TTY
	Lang        string
}

// Button is a dialog option. Mnemonic is the letter the client marked with
// an underscore in the label, or zero when it did not mark one.
type Button struct {
	Label    string
	Mnemonic rune
	Choice   Choice
}

// Backend talks to the human. Implementations must not block past the
// Timeout of a request or past cancellation of ctx, must restore the
// terminal before returning and must never echo or log secret input.
type Backend interface {
	// Display renders a prompt and returns a handle to read the answer.
	Display(ctx context.Context, p Prompt) (Handle, error)
	Confirm(ctx context.Context, d Dialog) (Choice, error)
	// Message shows d and waits for acknowledgement.
	Message(ctx context.Context, d Dialog) (Choice, error)
}

// Handle is a displayed prompt.
type Handle interface {
	// ReadSecret writes the user's input into buf. On security.ErrBufferFull
	// the input was longer than buf allows.
	ReadSecret(ctx context.Context, buf *security.Buffer) (Outcome, error)
	Close() error
}

// ParseLabel strips the underscore mnemonic marker from a label sent by the
// client ("_Cancel" becomes "Cancel" with mnemonic 'c'). A doubled
// underscore stands for a literal one.
func ParseLabel(label string) (string, rune) {
	if !strings.Contains(label, "_") {
		return label, 0
	}
	var b strings.Builder
	var mnemonic rune
	rs := []rune(label)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '_' {
			b.WriteRune(rs[i])
			continue
		}
		if i+1 < len(rs) && rs[i+1] == '_' {
			b.WriteRune('_')
			i++
			continue
		}
		if mnemonic == 0 && i+1 < len(rs) && unicode.IsLetter(rs[i+1]) {
			mnemonic = unicode.ToLower(rs[i+1])
		}
	}
	return b.String(), mnemonic
}

func newButton(label string, c Choice) Button {
	text, m := ParseLabel(label)
	return Button{Label: text, Mnemonic: m, Choice: c}
}

// Mnemonics picks a distinct letter for every button: the one the client
// marked, else the first letter of the label not taken yet. Each result is
// the rune as it appears in the label, or zero when no letter is free.
func Mnemonics(buttons []Button) []rune {
	used := map[rune]bool{}
	out := make([]rune, len(buttons))
	free := func(r rune) bool { return unicode.IsLetter(r) && !used[unicode.ToLower(r)] }
	for i, btn := range buttons {
		var m rune
		for _, r := range btn.Label {
			if free(r) && (btn.Mnemonic == 0 || unicode.ToLower(r) == btn.Mnemonic) {
				m = r
				break
			}
		}
		if m == 0 && btn.Mnemonic != 0 {
			for _, r := range btn.Label {
				if free(r) {
					m = r
					break
				}
			}
		}
		if m != 0 {
			used[unicode.ToLower(m)] = true
		}
		out[i] = m
	}
	return out
}
