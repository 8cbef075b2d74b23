// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package security holds the in-memory containers for sensitive material.
// Buffer is the fixed-capacity store a PIN is typed into; Secret is the
// redacting wrapper for configuration values that must not show up in logs.
package security
