// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

//go:build !unix && !windows

package terminal

import (
	"errors"
	"os"
	"time"
)

func displayName(name string) string { return name }

func openDevice(name string) (*os.File, *os.File, error) {
	return nil, nil, errors.New("terminals are not supported on this platform")
}

func pollReadable(f *os.File, d time.Duration) (bool, error) {
	return true, nil
}
