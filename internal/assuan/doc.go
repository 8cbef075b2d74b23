// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package assuan implements the line-oriented request/response codec spoken
// between a key agent and a pinentry: bounded line reading, percent
// escaping, command parsing, response encoding and the table of error codes
// reported back to the caller.
package assuan // import "github.com/toeirei/keymaster-pinentry/internal/assuan"

// MaxLineSize is the longest line, newline included, either side may send.
const MaxLineSize = 1000
