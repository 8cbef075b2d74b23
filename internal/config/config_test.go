// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	cfg "github.com/toeirei/keymaster-pinentry/internal/config"
)

// isolate points the user config dir at an empty temp dir and runs from
// another one so no real config file leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return tmp
}

func TestLoadConfig_DefaultsOnly(t *testing.T) {
	isolate(t)

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := cfg.Default()
	if got.Mode != want.Mode || got.Backend != want.Backend || got.MaxAttempts != want.MaxAttempts ||
		got.MaxPinLength != want.MaxPinLength || got.LogLevel != want.LogLevel || got.JournalType != want.JournalType {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestWriteConfigFile_CreatesFile(t *testing.T) {
	isolate(t)

	c := cfg.Default()
	c.Backend = "tui"
	path, err := cfg.WriteConfigFile(&c, false)
	if err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}

	want, err := cfg.GetConfigPath(false)
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	if path != want {
		t.Fatalf("wrote %s, expected %s", path, want)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected config file at %s, stat error: %v", path, err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", st.Mode().Perm())
	}

	// The written file is picked up by the search path.
	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Backend != "tui" {
		t.Fatalf("expected backend from written file, got %q", got.Backend)
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	isolate(t)
	doc := "backend: tui\nmax-attempts: 5\nlang: de\nerror_codes:\n  cancelled: 99\n  timeout: 62\n"
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(file, []byte(doc), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.Backend != "tui" || got.MaxAttempts != 5 || got.Lang != "de" {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.ErrorCodes["cancelled"] != 99 || got.ErrorCodes["timeout"] != 62 {
		t.Fatalf("unexpected error codes: %v", got.ErrorCodes)
	}
	if got.Mode != "stdio" {
		t.Fatalf("default lost: mode=%q", got.Mode)
	}
}

func TestLoadConfig_MalformedFileFails(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(file, []byte("backend: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(file, []byte("backend: tui\ntimeout: 10\nlog-level: info\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("KEYMASTER_PINENTRY_TIMEOUT", "20")
	t.Setenv("KEYMASTER_PINENTRY_LOG_LEVEL", "debug")

	cmd := &cobra.Command{}
	cmd.Flags().String("log-level", "warn", "")
	cmd.Flags().String("backend", "tty", "")
	if err := cmd.Flags().Set("log-level", "error"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](cmd, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Timeout != 20 {
		t.Fatalf("env should override file: timeout=%d", got.Timeout)
	}
	if got.LogLevel != "error" {
		t.Fatalf("changed flag should override env: log-level=%q", got.LogLevel)
	}
	// An unchanged flag does not shadow the file.
	if got.Backend != "tui" {
		t.Fatalf("file should win over unchanged flag default: backend=%q", got.Backend)
	}
}

func TestGetConfigPath_NamesFile(t *testing.T) {
	isolate(t)
	for _, system := range []bool{false, true} {
		p, err := cfg.GetConfigPath(system)
		if err != nil {
			t.Fatalf("GetConfigPath(%v): %v", system, err)
		}
		if !strings.HasSuffix(p, "keymaster-pinentry.yaml") {
			t.Fatalf("unexpected path %q", p)
		}
	}
}
