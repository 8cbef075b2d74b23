// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/toeirei/keymaster-pinentry/internal/logging"
)

// Listen opens a listener from an address of the form "unix:PATH",
// "tcp:HOST:PORT" or "pipe:NAME" (Windows named pipes).
func Listen(addr string) (net.Listener, error) {
	scheme, rest, ok := strings.Cut(addr, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("invalid listen address %q: want unix:PATH, tcp:ADDR or pipe:NAME", addr)
	}
	switch scheme {
	case "unix":
		return listenUnix(rest)
	case "tcp":
		return listenTCP(rest)
	case "pipe":
		return listenPipe(rest)
	}
	return nil, fmt.Errorf("unsupported listen scheme %q", scheme)
}

// listenUnix removes a stale socket left by a previous run and restricts the
// new one to the owner.
func listenUnix(path string) (net.Listener, error) {
	if st, err := os.Lstat(path); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("%s exists and is not a socket", path)
		}
		if c, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
			_ = c.Close()
			return nil, fmt.Errorf("%s is in use by another process", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
		logging.Debugf("removed stale socket %s", path)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return l, nil
}

// listenTCP binds to loopback unless a host is given explicitly.
func listenTCP(addr string) (net.Listener, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid tcp address %q: %w", addr, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if ip := net.ParseIP(host); (ip == nil && host != "localhost") || (ip != nil && !ip.IsLoopback()) {
		logging.Warnf("listening on non-loopback address %s; the channel is not encrypted", host)
	}
	return net.Listen("tcp", net.JoinHostPort(host, port))
}
