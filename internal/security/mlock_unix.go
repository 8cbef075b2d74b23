//go:build unix

// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package security

import "golang.org/x/sys/unix"

// lockMemory keeps b out of swap. Failure (RLIMIT_MEMLOCK, containers) is
// not fatal; the buffer is still zeroed on release.
func lockMemory(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return unix.Mlock(b) == nil
}

func unlockMemory(b []byte) {
	_ = unix.Munlock(b)
}
