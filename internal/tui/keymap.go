// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/toeirei/keymaster-pinentry/internal/i18n"
)

type promptKeyMap struct {
	Submit    key.Binding
	Cancel    key.Binding
	Left      key.Binding
	Right     key.Binding
	Home      key.Binding
	End       key.Binding
	Backspace key.Binding
	Delete    key.Binding
	Clear     key.Binding
	KillWord  key.Binding
}

func (km promptKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Submit, km.Cancel, km.Clear}
}

func (km promptKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Submit, km.Cancel},
		{km.Left, km.Right, km.Home, km.End},
		{km.Backspace, km.Delete, km.Clear, km.KillWord},
	}
}

var _ help.KeyMap = promptKeyMap{}

func newPromptKeyMap(lang string) promptKeyMap {
	return promptKeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", i18n.TL(lang, "tui.help.submit")),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c", "ctrl+d"),
			key.WithHelp("esc", i18n.TL(lang, "tui.help.cancel")),
		),
		Left:      key.NewBinding(key.WithKeys("left", "ctrl+b")),
		Right:     key.NewBinding(key.WithKeys("right", "ctrl+f")),
		Home:      key.NewBinding(key.WithKeys("home", "ctrl+a")),
		End:       key.NewBinding(key.WithKeys("end", "ctrl+e")),
		Backspace: key.NewBinding(key.WithKeys("backspace", "ctrl+h")),
		Delete:    key.NewBinding(key.WithKeys("delete")),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", i18n.TL(lang, "tui.help.clear")),
		),
		KillWord: key.NewBinding(key.WithKeys("ctrl+w", "alt+backspace")),
	}
}

type dialogKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Select key.Binding
	Cancel key.Binding
}

func (km dialogKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Next, km.Select, km.Cancel}
}

func (km dialogKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{km.Next, km.Prev, km.Select, km.Cancel}}
}

var _ help.KeyMap = dialogKeyMap{}

func newDialogKeyMap(lang string) dialogKeyMap {
	return dialogKeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "right"),
			key.WithHelp("tab/→", i18n.TL(lang, "tui.help.move")),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "left"),
			key.WithHelp("shift+tab/←", i18n.TL(lang, "tui.help.move")),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", i18n.TL(lang, "tui.help.select")),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c", "ctrl+d"),
			key.WithHelp("esc", i18n.TL(lang, "tui.help.cancel")),
		),
	}
}

// newHelp separates hints with a middle dot; the bullet is the mask rune.
func newHelp() help.Model {
	h := help.New()
	h.ShortSeparator = " · "
	return h
}
