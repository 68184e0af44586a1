// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/parley/lib/avatar"
	"github.com/bureau-foundation/parley/lib/chatlog"
	"github.com/bureau-foundation/parley/transport"
)

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}
	separator := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", model.width))
	return strings.Join([]string{
		model.viewport.View(),
		separator,
		model.input.View(),
		model.renderStatus(),
	}, "\n")
}

// renderStatus draws the bottom bar: room and user on the left, the
// connection state on the right.
func (model Model) renderStatus() string {
	base := lipgloss.NewStyle().
		Foreground(model.theme.StatusForeground).
		Background(model.theme.StatusBackground)

	left := " room " + model.room + " · " + model.username

	var indicator string
	var color lipgloss.Color
	switch {
	case model.connecting:
		indicator, color = "◌ connecting", model.theme.StatusConnecting
		if model.target != transport.MethodNone {
			indicator += " via " + model.target.String()
		}
	case model.method != transport.MethodNone:
		indicator, color = "● "+model.method.String(), model.theme.StatusConnected
	default:
		indicator, color = "○ disconnected", model.theme.StatusIdle
	}
	right := indicator + " "

	gap := model.width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		left = ansi.Truncate(left, max(model.width-ansi.StringWidth(right)-1, 0), "…")
		gap = max(model.width-ansi.StringWidth(left)-ansi.StringWidth(right), 0)
	}
	line := base.Render(left+strings.Repeat(" ", gap)) +
		base.Foreground(color).Bold(true).Render(right)
	return ansi.Truncate(line, model.width, "")
}

// renderLog renders every entry wrapped to width.
func renderLog(entries []chatlog.Entry, width int, theme Theme) string {
	if width <= 0 {
		width = 80
	}
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	system := faint.Italic(true).Width(width)
	body := lipgloss.NewStyle().Foreground(theme.NormalText)

	var lines []string
	for i, entry := range entries {
		if chatlog.ShowTimestamp(entries, i) {
			stamp := entry.Timestamp.Local().Format("Mon Jan 2 15:04")
			lines = append(lines, faint.Width(width).Align(lipgloss.Center).Render(stamp))
		}
		if entry.Kind == chatlog.KindSystem {
			lines = append(lines, system.Render("* "+entry.Text))
			continue
		}
		lines = append(lines, renderMessage(entry, width, theme, body))
	}
	return strings.Join(lines, "\n")
}

// renderMessage draws "[AB] name: text" with the avatar badge in the
// sender's palette color, wrapped under the name.
func renderMessage(entry chatlog.Entry, width int, theme Theme, body lipgloss.Style) string {
	badge := lipgloss.NewStyle().
		Foreground(theme.AvatarText).
		Background(lipgloss.Color(avatar.Color(entry.Sender))).
		Bold(true).
		Padding(0, 1).
		Render(avatar.Initials(entry.Sender))

	name := entry.Sender
	nameStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(avatar.Color(entry.Sender)))
	if entry.Own {
		name += " (you)"
		nameStyle = nameStyle.Foreground(theme.OwnText)
	}
	prefix := badge + " " + nameStyle.Render(name) + ": "

	indent := ansi.StringWidth(prefix)
	textWidth := width - indent
	if textWidth < 10 {
		return prefix + "\n" + body.Width(width).Render(entry.Text)
	}
	wrapped := strings.Split(body.Width(textWidth).Render(entry.Text), "\n")
	for i := 1; i < len(wrapped); i++ {
		wrapped[i] = strings.Repeat(" ", indent) + wrapped[i]
	}
	return prefix + strings.Join(wrapped, "\n")
}
