// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/util"
)

const appTitle = "🌾 Farmer Assistant"

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if line := m.statusLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.renderInput())
	if m.showHints {
		b.WriteString("\n")
		b.WriteString(m.renderHints())
	}
	return b.String()
}

// chromeHeight is the number of rows outside the viewport.
func (m Model) chromeHeight() int {
	// header (2) + input box (3) + status line (1) + newlines
	h := 2 + 3 + 1 + 2
	if m.showHints {
		h++
	}
	return h
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(appTitle)
	banner := m.renderBanner()
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(banner) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + banner)
}

func (m Model) renderBanner() string {
	text := "📍 " + util.TruncateWidth(m.loc.Banner(), max(10, m.width/2))
	switch {
	case m.loc.Loading:
		return m.theme.BannerMuted.Render(text)
	case m.loc.PermissionDenied, m.loc.Err != nil:
		return m.theme.BannerWarning.Render(text)
	case m.loc.Location != nil:
		return m.theme.Banner.Render(text)
	default:
		return m.theme.BannerMuted.Render(text)
	}
}

func (m Model) renderTranscript() string {
	if len(m.snap.Messages) == 0 {
		return m.renderWelcome()
	}

	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(m.theme.UserLabel.Render(msg.Role.DisplayName()))
			b.WriteString("\n")
			b.WriteString(m.theme.UserText.Width(max(20, m.width-2)).Render(msg.Content))
		case model.RoleAssistant:
			label := msg.Role.DisplayName()
			if m.speaking.Speaking && m.speaking.MessageID == i {
				label += " " + m.theme.Speaking.Render(speakingLabel(m.speaking.Fallback))
			}
			b.WriteString(m.theme.AssistantLabel.Render(label))
			b.WriteString("\n")
			b.WriteString(m.markdown.Render(msg.Content))
		}
		b.WriteString("\n")
	}

	// A reply is pending until the first delta lands.
	if m.snap.Loading && m.snap.Messages[len(m.snap.Messages)-1].Role == model.RoleUser {
		b.WriteString("\n")
		b.WriteString(m.spinner.View())
		b.WriteString(m.theme.Hint.Render(" Thinking..."))
		b.WriteString("\n")
	}
	return b.String()
}

func speakingLabel(fallback bool) string {
	if fallback {
		return "🔊 speaking (local voice)"
	}
	return "🔊 speaking"
}

func (m Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString(m.theme.WelcomeTitle.Render("Welcome to Farmer Assistant"))
	b.WriteString("\n")
	b.WriteString(m.theme.WelcomeText.Render("Ask me anything about farming: crops, soil, weather, pests, markets and schemes."))
	b.WriteString("\n\n")
	for i, action := range conversation.QuickActions {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			m.theme.QuickNumber.Render(fmt.Sprintf("%d.", i+1)),
			m.theme.QuickLabel.Render(action.Label)))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Hint.Render("Press a number to ask, or type your own question."))
	return b.String()
}

func (m Model) statusLine() string {
	if m.listening {
		return m.theme.Notice.Render(m.notice)
	}
	if m.snap.Err != nil {
		return m.theme.Error.Render("⚠ " + m.snap.Err.Error())
	}
	if m.notice != "" {
		return m.theme.Notice.Render(m.notice)
	}
	return ""
}

func (m Model) renderInput() string {
	style := m.theme.InputBox
	if m.busy() {
		style = m.theme.InputDisabled
	}
	return style.Width(max(20, m.width-2)).Render(m.input.View())
}

func (m Model) renderHints() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.Hint.Render(util.TruncateWidth(strings.Join(parts, " • "), max(10, m.width)))
}
