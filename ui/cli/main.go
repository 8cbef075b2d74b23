// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, the persistent flags shared by every
// subcommand and configuration loading.

package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/toeirei/keymaster-pinentry/buildvars"
	"github.com/toeirei/keymaster-pinentry/internal/config"
	"github.com/toeirei/keymaster-pinentry/internal/i18n"
	"github.com/toeirei/keymaster-pinentry/internal/logging"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

const modulePath = "github.com/toeirei/keymaster-pinentry"

var appConfig config.Config

// setupDefaultServices loads the layered configuration and applies the
// process-wide parts of it (log level, language).
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	path, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	appConfig, err = config.LoadConfig[config.Config](cmd, config.Defaults(), path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := logging.SetLevel(appConfig.LogLevel); err != nil {
		return err
	}
	i18n.Init(appConfig.Lang)
	return nil
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only an explicitly set --config counts.
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

// addPersistentFlags registers the flags shared by the root command and its
// subcommands. Names match the configuration keys.
func addPersistentFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("config", "", "config file")
	fs.String("mode", d.Mode, `how to serve: "stdio" or "server"`)
	fs.String("backend", d.Backend, `prompt backend: "tty" (plain) or "tui" (rich)`)
	fs.String("listen", "", "server address: unix:PATH, tcp:HOST:PORT or pipe:NAME")
	fs.String("ttyname", "", "terminal to prompt on (default /dev/tty)")
	fs.String("ttytype", "", "terminal type")
	fs.String("lc-ctype", "", "character set locale of the terminal")
	fs.String("lc-messages", "", "locale for prompt texts")
	fs.String("display", "", "X display (accepted, unused)")
	fs.Int("timeout", d.Timeout, "seconds to wait for input, 0 waits forever")
	fs.Int("max-attempts", d.MaxAttempts, "retries allowed after a wrong PIN, 0 disables the limit")
	fs.Int("max-pin-length", d.MaxPinLength, "maximum PIN length in bytes")
	fs.String("lang", d.Lang, `language for terminal texts ("en", "de")`)
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("journal-type", d.JournalType, "session journal database: sqlite, postgres or mysql")
	fs.String("journal-dsn", "", "session journal DSN; empty disables the journal")
	fs.String("transcript", "", "append a redacted protocol transcript to this file")
}

// NewRootCmd creates the root command. Every call returns a fresh tree so
// tests can run commands in isolation.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keymaster-pinentry",
		Short: "Keymaster Pinentry asks for PINs and passphrases on behalf of agents.",
		Long: `Keymaster Pinentry speaks the pinentry protocol on stdin/stdout (or on a
socket in server mode) and prompts the user on a terminal.

Running without a subcommand serves one session on stdio.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupDefaultServices,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPinentry(cmd, appConfig)
		},
	}

	v, c, d := resolveBuildVersion(nil)
	cmd.Version = compositeVersion(v, c, d)

	addPersistentFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCmd(),
		newJournalCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI entrypoint. main handles the exit code.
func Execute() error {
	return NewRootCmd().Execute()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions from --listen one after another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := appConfig
			c.Mode = "server"
			return runPinentry(cmd, c)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		// Version output must not depend on a readable config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}
}

func compositeVersion(v, c, d string) string {
	s := v
	if c != "" && c != "dev" {
		s += " (" + c + ")"
	}
	if d != "" {
		s += " built: " + d
	}
	return s
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If `info` is nil, it reads build info from
// the runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault(version)
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	if info == nil {
		if local, found := debug.ReadBuildInfo(); found {
			info = local
		}
	}

	if info != nil {
		if resolvedVersion == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		// Built as a dependency of another module.
		if resolvedVersion == "dev" {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	// Last resort: a commit injected via ldflags still beats "dev".
	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}
