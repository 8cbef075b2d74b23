// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.
package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/toeirei/keymaster-pinentry/internal/assuan"
	"github.com/toeirei/keymaster-pinentry/internal/config"
	"github.com/toeirei/keymaster-pinentry/internal/journal"
	"github.com/toeirei/keymaster-pinentry/internal/logging"
	"github.com/toeirei/keymaster-pinentry/internal/server"
)

// isolateConfig keeps user and system config files out of the test.
func isolateConfig(t *testing.T) string {
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

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "version: ") || !strings.Contains(out, "commit: ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConfigInit_WritesDefaults(t *testing.T) {
	isolateConfig(t)
	out, err := runCmd(t, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	path, err := config.GetConfigPath(false)
	if err != nil {
		t.Fatalf("GetConfigPath: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("output should name %s: %q", path, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "backend: tty") || !strings.Contains(string(data), "max-attempts: 3") {
		t.Fatalf("unexpected config file:\n%s", data)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	isolateConfig(t)
	file := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(file, []byte("backend: tui\nmax-attempts: 7\nlang: de\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	root := NewRootCmd()
	var loaded config.Config
	probe := &cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded = appConfig
			return nil
		},
	}
	root.AddCommand(probe)
	root.SetArgs([]string{"--config", file, "--max-attempts", "2", "probe"})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if loaded.Backend != "tui" || loaded.MaxAttempts != 2 || loaded.Lang != "de" {
		t.Fatalf("unexpected config %+v", loaded)
	}
}

func TestMissingConfigFileIsAnError(t *testing.T) {
	isolateConfig(t)
	_, err := runCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "journal", "list")
	if err == nil {
		t.Fatalf("expected error for missing --config file")
	}
}

func TestJournalList_Disabled(t *testing.T) {
	isolateConfig(t)
	out, err := runCmd(t, "--lang", "en", "journal", "list")
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	if !strings.Contains(out, "journal is disabled") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestJournalListAndExport(t *testing.T) {
	isolateConfig(t)
	dsn := filepath.Join(t.TempDir(), "journal.db")

	out, err := runCmd(t, "--lang", "en", "--journal-dsn", dsn, "journal", "list")
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	if !strings.Contains(out, "No sessions recorded.") {
		t.Fatalf("expected empty journal, got %q", out)
	}

	ctx := context.Background()
	j, err := journal.Open(ctx, "sqlite", dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.StartSession(ctx, "sess-1", "stdio"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := j.RecordEvent(ctx, journal.Event{SessionID: "sess-1", Verb: "GETPIN", Outcome: "ok"}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := j.EndSession(ctx, "sess-1", "closed"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	_ = j.Close()

	out, err = runCmd(t, "--journal-dsn", dsn, "journal", "list")
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	for _, want := range []string{"SESSION", "sess-1", "stdio", "closed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	dump := filepath.Join(t.TempDir(), "journal.json.zst")
	out, err = runCmd(t, "--lang", "en", "--journal-dsn", dsn, "journal", "export", "--out", dump)
	if err != nil {
		t.Fatalf("journal export: %v", err)
	}
	if !strings.Contains(out, "Exported 1 sessions to "+dump) {
		t.Fatalf("unexpected output %q", out)
	}
	f, err := os.Open(dump)
	if err != nil {
		t.Fatalf("open dump: %v", err)
	}
	defer f.Close()
	d, err := journal.ReadDump(f)
	if err != nil {
		t.Fatalf("ReadDump: %v", err)
	}
	if len(d.Sessions) != 1 || d.Sessions[0].Events[0].Verb != "GETPIN" {
		t.Fatalf("unexpected dump %+v", d)
	}
}

func TestJournalExport_RequiresOut(t *testing.T) {
	isolateConfig(t)
	if _, err := runCmd(t, "--journal-dsn", filepath.Join(t.TempDir(), "j.db"), "journal", "export"); err == nil {
		t.Fatalf("expected error without --out")
	}
}

func TestNewBackend(t *testing.T) {
	cases := map[string]string{"": "tty", "tty": "tty", "basic": "tty", "tui": "tui", "curses": "tui"}
	for in, want := range cases {
		b, flavor, err := newBackend(in, "")
		if err != nil || b == nil || flavor != want {
			t.Fatalf("newBackend(%q) = %v, %q, %v", in, b, flavor, err)
		}
	}
	if _, _, err := newBackend("gtk", ""); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestBuildServerConfig(t *testing.T) {
	c := config.Default()
	c.Backend = "tui"
	c.TTYName = "/dev/pts/9"
	c.LCMessages = "de_DE.UTF-8"
	c.Timeout = 30
	c.ErrorCodes = map[string]uint32{"cancelled": 99}
	c.Transcript = filepath.Join(t.TempDir(), "t.log")

	sc, cleanup, err := buildServerConfig(context.Background(), c)
	if err != nil {
		t.Fatalf("buildServerConfig: %v", err)
	}
	defer cleanup()

	s := sc.Session
	if s.Flavor != "tui" || s.Sticky.TTY.Name != "/dev/pts/9" || s.Sticky.LCMessages != "de_DE.UTF-8" {
		t.Fatalf("unexpected session config %+v", s)
	}
	if s.Timeout.Seconds() != 30 || s.Sticky.MaxAttempts != 3 || s.MaxPinLength != 2048 {
		t.Fatalf("unexpected limits %+v", s)
	}
	if got := s.Codes.Get(assuan.ErrorCancelled).Code; got != 99 {
		t.Fatalf("code override not applied: %d", got)
	}
	if sc.Transcript == nil || sc.Journal != nil {
		t.Fatalf("expected transcript and no journal")
	}
	if _, err := os.Stat(c.Transcript); err != nil {
		t.Fatalf("transcript file not created: %v", err)
	}
}

func TestBuildServerConfig_Errors(t *testing.T) {
	c := config.Default()
	c.ErrorCodes = map[string]uint32{"cancled": 1}
	if _, _, err := buildServerConfig(context.Background(), c); err == nil {
		t.Fatalf("expected error for unknown code name")
	}

	c = config.Default()
	c.JournalType = "oracle"
	c.JournalDSN = "x"
	if _, _, err := buildServerConfig(context.Background(), c); err == nil {
		t.Fatalf("expected error for unsupported journal")
	}
}

func TestRunPinentry_ModeErrors(t *testing.T) {
	c := config.Default()
	c.Mode = "server"
	if err := runPinentry(&cobra.Command{}, c); err == nil || !strings.Contains(err.Error(), "--listen") {
		t.Fatalf("expected --listen error, got %v", err)
	}
	c.Mode = "carrier-pigeon"
	if err := runPinentry(&cobra.Command{}, c); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestRunPinentry_StdioFailsWithoutTerminal(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	if err := os.WriteFile(in, []byte("GETPIN\n"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	stdin, err := os.Open(in)
	if err != nil {
		t.Fatalf("open input: %v", err)
	}
	defer stdin.Close()
	stdout, err := os.Create(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("create output: %v", err)
	}
	defer stdout.Close()

	prevIn, prevOut := os.Stdin, os.Stdout
	os.Stdin, os.Stdout = stdin, stdout
	defer func() { os.Stdin, os.Stdout = prevIn, prevOut }()

	c := config.Default()
	// A regular file is not a terminal.
	c.TTYName = filepath.Join(dir, "out")
	err = runPinentry(&cobra.Command{}, c)
	if !errors.Is(err, server.ErrTerminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}

	out, rerr := os.ReadFile(filepath.Join(dir, "out"))
	if rerr != nil {
		t.Fatalf("read output: %v", rerr)
	}
	if !strings.Contains(string(out), "ERR 83886081 ") {
		t.Fatalf("expected ERR line on stdout, got %q", out)
	}
}

func TestBuildServerConfig_RedactsJournalDSN(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.L
	logging.L = logging.New(&buf)
	defer func() { logging.L = prev }()
	if err := logging.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	c := config.Default()
	c.JournalDSN = filepath.Join(t.TempDir(), "hunter2.db")
	sc, cleanup, err := buildServerConfig(context.Background(), c)
	if err != nil {
		t.Fatalf("buildServerConfig: %v", err)
	}
	defer cleanup()
	if sc.Journal == nil {
		t.Fatalf("expected journal to be configured")
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("DSN leaked into log: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[SECRET]") {
		t.Fatalf("expected redacted DSN in log: %s", buf.String())
	}
}
