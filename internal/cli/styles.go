// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/farmhand/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// Shared styles for the line-based commands. Colors come from the UI palette.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Leaf)

	UserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Sky)

	AssistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Leaf)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Leaf)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Rose)

	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)
)

// RenderSeparator renders a horizontal rule of width cells (default 60).
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 60
	}
	return DimStyle.Render(strings.Repeat("─", width))
}
