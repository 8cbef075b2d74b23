// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/toeirei/keymaster-pinentry/internal/i18n"
	"github.com/toeirei/keymaster-pinentry/internal/journal"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the session journal",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			j, err := journal.Open(commandContext(cmd), appConfig.JournalType, appConfig.JournalDSN)
			if errors.Is(err, journal.ErrDisabled) {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.journal_disabled"))
				return nil
			}
			if err != nil {
				return err
			}
			defer j.Close()

			sessions, err := j.Recent(commandContext(cmd), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.journal_empty"))
				return nil
			}
			renderSessions(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
	list.Flags().IntP("limit", "n", 20, "number of sessions to show, 0 for all")

	export := &cobra.Command{
		Use:   "export",
		Short: "Write all sessions as zstd-compressed JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			j, err := journal.Open(commandContext(cmd), appConfig.JournalType, appConfig.JournalDSN)
			if errors.Is(err, journal.ErrDisabled) {
				return errors.New(i18n.T("cli.journal_disabled"))
			}
			if err != nil {
				return err
			}
			defer j.Close()

			f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			n, err := j.Export(commandContext(cmd), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.journal_exported", n, out))
			return nil
		},
	}
	export.Flags().StringP("out", "o", "", "output file")
	_ = export.MarkFlagRequired("out")

	cmd.AddCommand(list, export)
	return cmd
}

func renderSessions(w io.Writer, sessions []journal.Session) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("SESSION", "STARTED", "DURATION", "TRANSPORT", "OUTCOME", "COMMANDS")
	for _, s := range sessions {
		duration := "-"
		if !s.EndedAt.IsZero() {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		t.Row(
			s.ID,
			s.StartedAt.Local().Format(time.DateTime),
			duration,
			s.Transport,
			s.Outcome,
			strconv.Itoa(len(s.Events)),
		)
	}
	fmt.Fprintln(w, t.Render())
}
