// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of the chat UI. Avatar colors come from
// lib/avatar and are not themable: every client must agree on them.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	OwnText    lipgloss.Color
	ErrorText  lipgloss.Color

	StatusForeground lipgloss.Color
	StatusBackground lipgloss.Color
	StatusConnected  lipgloss.Color
	StatusConnecting lipgloss.Color
	StatusIdle       lipgloss.Color

	BorderColor lipgloss.Color
	AvatarText  lipgloss.Color
}

// DefaultTheme targets 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),
	OwnText:    lipgloss.Color("153"),
	ErrorText:  lipgloss.Color("203"),

	StatusForeground: lipgloss.Color("255"),
	StatusBackground: lipgloss.Color("236"),
	StatusConnected:  lipgloss.Color("114"), // green
	StatusConnecting: lipgloss.Color("220"), // amber
	StatusIdle:       lipgloss.Color("203"), // red

	BorderColor: lipgloss.Color("240"),
	AvatarText:  lipgloss.Color("255"),
}
