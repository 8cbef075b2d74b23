// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Keymaster Pinentry.
//
// Usage:
//
//	go run . [flags]
//	./keymaster-pinentry [flags]
//
// Without a subcommand one pinentry session is served on stdin/stdout. See
// --help for options.
package main

import (
	"os"

	"github.com/toeirei/keymaster-pinentry/internal/logging"
	"github.com/toeirei/keymaster-pinentry/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("%v", err)
		os.Exit(1)
	}
}
