// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package pinentry holds the per-connection state machine of the agent.
//
// A Session consumes parsed commands one at a time. SET* commands and OPTION
// only record values; GETPIN, CONFIRM and MESSAGE hand a Prompt or Dialog to
// a Backend, which owns all interaction with the human, and translate the
// outcome into protocol responses. Secrets travel from the backend to the
// ResponseWriter inside a security.Buffer that is released as soon as the
// data lines are written.
//
// Values set with SET* apply to the next request only. Values set with
// OPTION, and the retry counter, live for the whole connection.
package pinentry
