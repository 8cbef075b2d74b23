// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

//go:build windows

package terminal

import (
	"os"
	"time"
)

func displayName(name string) string {
	if name == "" {
		return "CONIN$"
	}
	return name
}

func openDevice(name string) (*os.File, *os.File, error) {
	if name != "" {
		f, err := os.OpenFile(name, os.O_RDWR, 0)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
	in, err := os.OpenFile("CONIN$", os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	out, err := os.OpenFile("CONOUT$", os.O_RDWR, 0)
	if err != nil {
		_ = in.Close()
		return nil, nil, err
	}
	return in, out, nil
}

// Console handles have no poll(2); reads block until a key arrives, so
// timeouts are only honoured between keys.
func pollReadable(f *os.File, d time.Duration) (bool, error) {
	return true, nil
}
