// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

//go:build windows

package server

import (
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

// ownerOnly grants generic access to the pipe owner and nobody else.
const ownerOnly = "D:P(A;;GA;;;OW)"

func listenPipe(name string) (net.Listener, error) {
	path := name
	if !strings.HasPrefix(path, `\\.\pipe\`) {
		path = `\\.\pipe\` + name
	}
	return winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: ownerOnly,
		InputBufferSize:    4096,
		OutputBufferSize:   4096,
	})
}
