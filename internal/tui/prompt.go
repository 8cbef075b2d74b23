// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/keymaster-pinentry/internal/i18n"
	"github.com/toeirei/keymaster-pinentry/internal/pinentry"
	"github.com/toeirei/keymaster-pinentry/internal/security"
)

const maskRune = "•"

// tickMsg drives the countdown.
type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// promptModel edits a secret in place. Typed runes go straight into buf;
// the model itself never holds the secret as a string.
type promptModel struct {
	p        pinentry.Prompt
	buf      *security.Buffer
	cursor   int // rune index into buf
	keys     promptKeyMap
	help     help.Model
	deadline time.Time
	now      func() time.Time

	outcome pinentry.Outcome
	err     error
	done    bool
}

func newPromptModel(p pinentry.Prompt, buf *security.Buffer, deadline time.Time) *promptModel {
	return &promptModel{
		p:        p,
		buf:      buf,
		keys:     newPromptKeyMap(p.Lang),
		help:     newHelp(),
		deadline: deadline,
		now:      time.Now,
		outcome:  pinentry.OutcomeCancelled,
	}
}

func (m *promptModel) Init() tea.Cmd {
	return m.nextTick()
}

func (m *promptModel) nextTick() tea.Cmd {
	if m.deadline.IsZero() {
		return nil
	}
	rem := m.deadline.Sub(m.now())
	return tick(min(time.Second, max(rem, time.Millisecond)))
}

func (m *promptModel) finish(o pinentry.Outcome, err error) (tea.Model, tea.Cmd) {
	m.outcome, m.err, m.done = o, err, true
	return m, tea.Quit
}

func (m *promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tickMsg:
		if !m.deadline.IsZero() && !m.now().Before(m.deadline) {
			return m.finish(pinentry.OutcomeTimedOut, nil)
		}
		return m, m.nextTick()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *promptModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.finish(pinentry.OutcomeEntered, nil)
	case key.Matches(msg, m.keys.Cancel):
		return m.finish(pinentry.OutcomeCancelled, nil)
	case key.Matches(msg, m.keys.Left):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.cursor = min(m.cursor+1, m.buf.RuneCount())
	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
	case key.Matches(msg, m.keys.End):
		m.cursor = m.buf.RuneCount()
	case key.Matches(msg, m.keys.Backspace):
		if m.cursor > 0 && m.buf.DeleteRune(m.cursor-1) {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Delete):
		m.buf.DeleteRune(m.cursor)
	case key.Matches(msg, m.keys.Clear):
		m.buf.Truncate()
		m.cursor = 0
	case key.Matches(msg, m.keys.KillWord):
		m.killWord()
	case msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace:
		defer clear(msg.Runes)
		for _, r := range msg.Runes {
			if err := m.buf.InsertRune(m.cursor, r); err != nil {
				return m.finish(pinentry.OutcomeCancelled, err)
			}
			m.cursor++
		}
	}
	return m, nil
}

// killWord deletes the word before the cursor together with any spaces
// following it.
func (m *promptModel) killWord() {
	start := 0
	_ = m.buf.Use(func(p []byte) error {
		inWord := false
		for i, off := 0, 0; off < len(p) && i < m.cursor; i++ {
			r, w := utf8.DecodeRune(p[off:])
			off += w
			if unicode.IsSpace(r) {
				inWord = false
				continue
			}
			if !inWord {
				start, inWord = i, true
			}
		}
		return nil
	})
	for m.cursor > start {
		m.cursor--
		m.buf.DeleteRune(m.cursor)
	}
}

func (m *promptModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.p.Title))
	b.WriteString("\n")
	if m.p.Error != "" {
		b.WriteString(errorStyle.Render(i18n.TL(m.p.Lang, "error.prefix", m.p.Error)))
		b.WriteString("\n\n")
	}
	if m.p.Description != "" {
		b.WriteString(descriptionStyle.Render(m.p.Description))
		b.WriteString("\n\n")
	}
	if m.p.KeyInfo != "" {
		b.WriteString(keyInfoStyle.Render(m.p.KeyInfo))
		b.WriteString("\n")
	}

	field := lipgloss.JoinHorizontal(lipgloss.Center,
		promptStyle.Render(m.p.Prompt),
		fieldStyle.Render(m.mask()),
	)
	b.WriteString(field)
	b.WriteString("\n")
	if cd := countdown(m.p.Lang, m.deadline, m.now()); cd != "" {
		b.WriteString(cd)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return docStyle.Render(b.String())
}

// mask renders one dot per rune with the cursor shown as a reversed cell.
func (m *promptModel) mask() string {
	n := m.buf.RuneCount()
	before := strings.Repeat(maskRune, m.cursor)
	if m.cursor < n {
		return before + cursorStyle.Render(maskRune) + strings.Repeat(maskRune, n-m.cursor-1)
	}
	return before + cursorStyle.Render(" ")
}

func countdown(lang string, deadline, now time.Time) string {
	if deadline.IsZero() {
		return ""
	}
	secs := int(deadline.Sub(now).Round(time.Second) / time.Second)
	secs = max(secs, 0)
	text := i18n.TL(lang, "tui.countdown", secs)
	if secs < 10 {
		return specialStyle.Render(text)
	}
	return helpStyle.Render(text)
}
