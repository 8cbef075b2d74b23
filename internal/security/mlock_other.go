//go:build !unix

// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package security

func lockMemory(b []byte) bool { return false }

func unlockMemory(b []byte) {}
