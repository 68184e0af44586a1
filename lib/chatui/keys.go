// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the chat UI. Printable keys
// always go to the input, so no binding uses a bare letter.
type KeyMap struct {
	Send         key.Binding
	CycleMethod  key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	ScrollTop    key.Binding
	ScrollBottom key.Binding
	Quit         key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	CycleMethod: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "next transport"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("pgdn", "scroll down"),
	),
	ScrollTop: key.NewBinding(
		key.WithKeys("ctrl+home"),
		key.WithHelp("C-home", "oldest"),
	),
	ScrollBottom: key.NewBinding(
		key.WithKeys("ctrl+end"),
		key.WithHelp("C-end", "newest"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "leave"),
	),
}
