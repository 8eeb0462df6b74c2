// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	// Location banner
	Banner        lipgloss.Style
	BannerWarning lipgloss.Style
	BannerMuted   lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	Speaking       lipgloss.Style

	// Welcome screen
	WelcomeTitle lipgloss.Style
	WelcomeText  lipgloss.Style
	QuickNumber  lipgloss.Style
	QuickLabel   lipgloss.Style

	// Input and footer
	InputBox      lipgloss.Style
	InputDisabled lipgloss.Style
	Spinner       lipgloss.Style
	Hint          lipgloss.Style
	Error         lipgloss.Style
	Notice        lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light").
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Leaf)

	t.Banner = lipgloss.NewStyle().Foreground(Leaf)
	t.BannerWarning = lipgloss.NewStyle().Foreground(Amber)
	t.BannerMuted = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Wheat)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Leaf)
	t.UserText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.Speaking = lipgloss.NewStyle().Foreground(Sky).Italic(true)

	t.WelcomeTitle = lipgloss.NewStyle().Bold(true).Foreground(Leaf).MarginBottom(1)
	t.WelcomeText = lipgloss.NewStyle().Foreground(TextPrimary)
	t.QuickNumber = lipgloss.NewStyle().Bold(true).Foreground(Wheat)
	t.QuickLabel = lipgloss.NewStyle().Foreground(TextPrimary)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(LeafDeep).
		Padding(0, 1)
	t.InputDisabled = t.InputBox.BorderForeground(Overlay)

	t.Spinner = lipgloss.NewStyle().Foreground(Leaf)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Notice = lipgloss.NewStyle().Foreground(Sky)
}
