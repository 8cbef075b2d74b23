// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
package assuan

import (
	"errors"
	"testing"
)

func TestParseCommandKinds(t *testing.T) {
	cases := []struct {
		line string
		kind Kind
		arg  string
	}{
		{"SETDESC Please enter the PIN", KindSetDescription, "Please enter the PIN"},
		{"SETPROMPT PIN:", KindSetPrompt, "PIN:"},
		{"SETTITLE Unlock", KindSetTitle, "Unlock"},
		{"SETERROR Bad%20PIN", KindSetError, "Bad PIN"},
		{"SETOK _Unlock", KindSetOkLabel, "_Unlock"},
		{"SETNOTOK Nope", KindSetNotOkLabel, "Nope"},
		{"SETCANCEL Abort", KindSetCancelLabel, "Abort"},
		{"SETKEYINFO n/ABCDEF", KindSetKeyInfo, "n/ABCDEF"},
		{"SETREPEAT Again:", KindSetRepeat, "Again:"},
		{"SETREPEATERROR does not match", KindSetRepeatError, "does not match"},
		{"SETQUALITYBAR", KindSetQualityBar, ""},
		{"SETQUALITYBAR_TT hint", KindSetQualityBarTooltip, "hint"},
		{"GETPIN", KindGetPin, ""},
		{"CONFIRM", KindConfirm, ""},
		{"MESSAGE", KindMessage, ""},
		{"GETINFO pid", KindGetInfo, "pid"},
		{"RESET", KindReset, ""},
		{"NOP", KindNop, ""},
		{"BYE", KindBye, ""},
		{"FROBNICATE now", KindUnknown, "now"},
		{"getpin", KindUnknown, ""},
	}
	for _, tc := range cases {
		cmd, err := ParseCommand([]byte(tc.line))
		if err != nil {
			t.Errorf("ParseCommand(%q) failed: %v", tc.line, err)
			continue
		}
		if cmd.Kind != tc.kind || cmd.Arg != tc.arg {
			t.Errorf("ParseCommand(%q) = kind %d arg %q, want kind %d arg %q", tc.line, cmd.Kind, cmd.Arg, tc.kind, tc.arg)
		}
	}
}

func TestParseCommandHasArg(t *testing.T) {
	cmd, _ := ParseCommand([]byte("SETDESC"))
	if cmd.HasArg {
		t.Fatalf("SETDESC without a space has no argument")
	}
	cmd, _ = ParseCommand([]byte("SETDESC "))
	if !cmd.HasArg || cmd.Arg != "" {
		t.Fatalf("SETDESC with a trailing space carries an empty argument, got %+v", cmd)
	}
}

func TestParseCommandTimeout(t *testing.T) {
	cmd, err := ParseCommand([]byte("SETTIMEOUT 30"))
	if err != nil || cmd.Seconds != 30 {
		t.Fatalf("got %+v, %v", cmd, err)
	}
	for _, bad := range []string{"SETTIMEOUT abc", "SETTIMEOUT -1", "SETTIMEOUT 1.5"} {
		cmd, err := ParseCommand([]byte(bad))
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("%q: expected ErrInvalidValue, got %v", bad, err)
		}
		if cmd.Kind != KindSetTimeout {
			t.Errorf("%q: kind must survive a bad value, got %d", bad, cmd.Kind)
		}
	}
}

func TestParseCommandOption(t *testing.T) {
	cases := []struct {
		line, key, value string
	}{
		{"OPTION ttyname=/dev/pts/3", "ttyname", "/dev/pts/3"},
		{"OPTION --ttytype=xterm", "ttytype", "xterm"},
		{"OPTION lc-ctype en_US.UTF-8", "lc-ctype", "en_US.UTF-8"},
		{"OPTION Default-OK=_Yes=please", "default-ok", "_Yes=please"},
		{"OPTION no-grab", "no-grab", ""},
		{"OPTION allow-external-password-cache", "allow-external-password-cache", ""},
	}
	for _, tc := range cases {
		cmd, err := ParseCommand([]byte(tc.line))
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tc.line, err)
		}
		if cmd.Key != tc.key || cmd.Value != tc.value {
			t.Errorf("%q: got %q=%q, want %q=%q", tc.line, cmd.Key, cmd.Value, tc.key, tc.value)
		}
	}
}

func TestParseCommandOneButton(t *testing.T) {
	cmd, _ := ParseCommand([]byte("CONFIRM --one-button"))
	if !cmd.OneButton {
		t.Fatalf("expected OneButton")
	}
	cmd, _ = ParseCommand([]byte("CONFIRM"))
	if cmd.OneButton {
		t.Fatalf("plain CONFIRM has two buttons")
	}
}

func TestParseCommandErrors(t *testing.T) {
	if _, err := ParseCommand([]byte{'S', 'E', 'T', 'D', 'E', 'S', 'C', ' ', 0xff}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for invalid UTF-8, got %v", err)
	}
	if _, err := ParseCommand([]byte("SETDESC 50%")); !errors.Is(err, ErrMalformedEscape) {
		t.Fatalf("expected ErrMalformedEscape, got %v", err)
	}
}

func TestCommandStringOmitsArgument(t *testing.T) {
	cmd, _ := ParseCommand([]byte("SETERROR wrong pin 1234"))
	if s := cmd.String(); s != "SETERROR" {
		t.Fatalf("String() = %q", s)
	}
	if !cmd.IsSetter() {
		t.Fatalf("SETERROR is a setter")
	}
	get, _ := ParseCommand([]byte("GETPIN"))
	if get.IsSetter() {
		t.Fatalf("GETPIN is not a setter")
	}
}

func TestIsComment(t *testing.T) {
	if !IsComment(nil) || !IsComment([]byte("# note")) {
		t.Fatalf("empty and '#' lines are comments")
	}
	if IsComment([]byte("NOP")) {
		t.Fatalf("NOP is not a comment")
	}
}
