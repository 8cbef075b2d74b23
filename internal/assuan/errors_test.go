// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
package assuan

import (
	"strings"
	"testing"
)

func TestDefaultCodes(t *testing.T) {
	c := DefaultCodes()
	cases := map[ErrorKind]uint32{
		ErrorCancelled:       83886179,
		ErrorTimeout:         83886142,
		ErrorNotConfirmed:    83886194,
		ErrorUnknownCommand:  83886355,
		ErrorLineTooLong:     83886343,
		ErrorIncompleteLine:  83886342,
		ErrorParameter:       83886360,
		ErrorInvalidValue:    83886341,
		ErrorGeneral:         83886081,
		ErrorInternal:        83886143,
		ErrorTooLarge:        83886147,
		ErrorTooManyAttempts: 83886091,
	}
	for kind, want := range cases {
		if got := c.Get(kind).Code; got != want {
			t.Errorf("kind %d: code %d, want %d", kind, got, want)
		}
	}
	if got := c.Get(ErrorCancelled).Error(); got != "83886179 Operation cancelled" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestCodesOverride(t *testing.T) {
	c := DefaultCodes()
	if err := c.Override(map[string]uint32{"cancelled": 99, "Timeout": 62}); err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if c.Get(ErrorCancelled).Code != 99 || c.Get(ErrorTimeout).Code != 62 {
		t.Fatalf("override not applied")
	}
	if c.Get(ErrorCancelled).Message != "Operation cancelled" {
		t.Fatalf("override must keep the message")
	}
	if DefaultCodes().Get(ErrorCancelled).Code != 83886179 {
		t.Fatalf("override leaked into the defaults")
	}

	err := c.Override(map[string]uint32{"canceled": 1, "bogus": 2})
	if err == nil || !strings.Contains(err.Error(), "bogus, canceled") {
		t.Fatalf("expected unknown names error, got %v", err)
	}
}

func TestCodesWithMessageAndNil(t *testing.T) {
	var c *Codes
	if c.Get(ErrorTimeout).Code != 83886142 {
		t.Fatalf("nil table must fall back to defaults")
	}
	e := DefaultCodes().WithMessage(ErrorGeneral, "terminal gone")
	if e.Code != 83886081 || e.Message != "terminal gone" {
		t.Fatalf("unexpected %+v", e)
	}
	if len(Names()) != 12 || Names()[0] != "general" {
		t.Fatalf("unexpected names %v", Names())
	}
}
