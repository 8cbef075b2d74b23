// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

//go:build !windows

package server

import (
	"errors"
	"net"
)

var errPipeUnsupported = errors.New("named pipes are only available on windows")

func listenPipe(string) (net.Listener, error) {
	return nil, errPipeUnsupported
}
