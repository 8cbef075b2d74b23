// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/keymaster-pinentry/internal/i18n"
	"github.com/toeirei/keymaster-pinentry/internal/pinentry"
)

// dialogModel is a row of buttons under a message.
type dialogModel struct {
	d         pinentry.Dialog
	mnemonics []rune
	focus     int
	keys      dialogKeyMap
	help      help.Model
	deadline  time.Time
	now       func() time.Time

	choice pinentry.Choice
	done   bool
}

func newDialogModel(d pinentry.Dialog, deadline time.Time) *dialogModel {
	return &dialogModel{
		d:         d,
		mnemonics: pinentry.Mnemonics(d.Buttons),
		keys:      newDialogKeyMap(d.Lang),
		help:      newHelp(),
		deadline:  deadline,
		now:       time.Now,
		choice:    pinentry.ChoiceCancelled,
	}
}

func (m *dialogModel) Init() tea.Cmd {
	if m.deadline.IsZero() {
		return nil
	}
	return tick(min(time.Second, max(m.deadline.Sub(m.now()), time.Millisecond)))
}

func (m *dialogModel) finish(c pinentry.Choice) (tea.Model, tea.Cmd) {
	m.choice, m.done = c, true
	return m, tea.Quit
}

func (m *dialogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tickMsg:
		if !m.now().Before(m.deadline) {
			return m.finish(pinentry.ChoiceTimedOut)
		}
		return m, m.Init()
	case tea.KeyMsg:
		n := len(m.d.Buttons)
		switch {
		case key.Matches(msg, m.keys.Cancel):
			return m.finish(pinentry.ChoiceCancelled)
		case key.Matches(msg, m.keys.Select):
			return m.finish(m.d.Buttons[m.focus].Choice)
		case key.Matches(msg, m.keys.Next):
			m.focus = (m.focus + 1) % n
		case key.Matches(msg, m.keys.Prev):
			m.focus = (m.focus + n - 1) % n
		case msg.Type == tea.KeyRunes && len(msg.Runes) == 1:
			if i, ok := m.pick(msg.Runes[0]); ok {
				return m.finish(m.d.Buttons[i].Choice)
			}
		}
	}
	return m, nil
}

// pick matches a button number or mnemonic.
func (m *dialogModel) pick(r rune) (int, bool) {
	if r >= '1' && r <= '9' {
		i := int(r - '1')
		return i, i < len(m.d.Buttons)
	}
	lr := unicode.ToLower(r)
	for i, mn := range m.mnemonics {
		if mn != 0 && unicode.ToLower(mn) == lr {
			return i, true
		}
	}
	return 0, false
}

func (m *dialogModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.d.Title))
	b.WriteString("\n")
	if m.d.Error != "" {
		b.WriteString(errorStyle.Render(i18n.TL(m.d.Lang, "error.prefix", m.d.Error)))
		b.WriteString("\n\n")
	}
	if m.d.Description != "" {
		b.WriteString(descriptionStyle.Render(m.d.Description))
		b.WriteString("\n")
	}

	buttons := make([]string, len(m.d.Buttons))
	for i, btn := range m.d.Buttons {
		style := buttonStyle
		if i == m.focus {
			style = activeButtonStyle
		}
		buttons[i] = style.Render(btn.Label)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	b.WriteString("\n")
	if cd := countdown(m.d.Lang, m.deadline, m.now()); cd != "" {
		b.WriteString(cd)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return docStyle.Render(boxStyle.Render(b.String()))
}
