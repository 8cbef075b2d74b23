// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the command-line interface using Cobra. It loads the
// configuration, picks a prompt backend and hands the protocol stream to
// internal/server. CLI code stays thin.
package cli
