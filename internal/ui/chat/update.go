// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/speech"
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		wasLoading := m.snap.Loading
		m.snap = msg.Snapshot
		m.syncInput()
		m.refreshViewport()
		if m.snap.Loading && !wasLoading {
			return m, m.spinner.Tick
		}
		return m, nil

	case TurnDoneMsg:
		// The controller already published the error snapshot; this only
		// catches errors that never reached it.
		if msg.Err != nil && !errors.Is(msg.Err, conversation.ErrEmptyInput) && m.snap.Err == nil {
			m.notice = msg.Err.Error()
		}
		return m, nil

	case LocationMsg:
		m.loc = msg.State
		return m, nil

	case SpeechStatusMsg:
		m.speaking = msg.Status
		m.refreshViewport()
		return m, nil

	case SpeakDoneMsg:
		if msg.Err != nil {
			m.notice = speech.UserMessage(msg.Err)
		}
		return m, nil

	case VoiceDoneMsg:
		m.listening = false
		if msg.Err != nil {
			m.notice = speech.VoiceMessage(msg.Err)
			return m, nil
		}
		m.notice = ""
		return m.submit(msg.Text, conversation.SourceVoice)

	case resetDoneMsg:
		m.notice = ""
		return m, nil

	case spinner.TickMsg:
		if !m.snap.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.conv != nil {
			m.conv.Abort()
		}
		if m.speaker != nil {
			m.speaker.Stop()
		}
		if m.listener != nil && m.listening {
			m.listener.Stop()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Abort):
		if m.conv != nil && m.conv.Busy() {
			m.conv.Abort()
		}
		return m, nil

	case key.Matches(msg, m.keys.Speak):
		return m.speakLast()

	case key.Matches(msg, m.keys.Voice):
		return m.toggleVoice()

	case key.Matches(msg, m.keys.Location):
		if m.locator == nil {
			return m, nil
		}
		m.loc.Loading = true
		return m, m.locateCmd()

	case key.Matches(msg, m.keys.NewChat):
		if m.conv == nil || m.conv.Busy() {
			return m, nil
		}
		if m.speaker != nil {
			m.speaker.Stop()
		}
		return m, m.resetCmd()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit(m.input.Value(), conversation.SourceTyped)
	}

	if m.busy() {
		// Input is disabled while a turn runs.
		return m, nil
	}

	// Digits pick a quick action on the welcome screen.
	if len(m.snap.Messages) == 0 && m.input.Value() == "" && msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if n := int(msg.Runes[0] - '0'); n >= 1 && n <= len(conversation.QuickActions) {
			action, _ := conversation.QuickActionAt(n)
			return m.submit(action.Query, conversation.SourceQuickAction)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(text string, src conversation.InputSource) (tea.Model, tea.Cmd) {
	if m.conv == nil || m.busy() || strings.TrimSpace(text) == "" {
		return m, nil
	}
	m.input.Reset()
	m.notice = ""
	// Disable input now; the controller's Sending snapshot follows.
	m.snap.Loading = true
	m.syncInput()
	return m, tea.Batch(m.submitCmd(text, src), m.spinner.Tick)
}

func (m Model) speakLast() (tea.Model, tea.Cmd) {
	if m.speaker == nil {
		m.notice = "Speech is disabled."
		return m, nil
	}
	idx := model.LastAssistantIndex(m.snap.Messages)
	if idx < 0 {
		m.notice = speech.UserMessage(speech.ErrNothingToSpeak)
		return m, nil
	}
	m.notice = ""
	return m, m.speakCmd(m.snap.Messages[idx].Content, idx)
}

// toggleVoice starts a recording, or stops the one in progress so its
// transcript is submitted.
func (m Model) toggleVoice() (tea.Model, tea.Cmd) {
	if m.listener == nil {
		m.notice = speech.VoiceMessage(speech.ErrVoiceDisabled)
		return m, nil
	}
	if m.listening {
		m.listener.Stop()
		return m, nil
	}
	if m.busy() {
		return m, nil
	}
	m.listening = true
	m.notice = "🎤 Listening... press ctrl+v to stop."
	return m, m.listenCmd()
}

func (m Model) busy() bool {
	return m.snap.Loading
}

func (m *Model) syncInput() {
	if m.busy() {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(10, width-8)

	vh := height - m.chromeHeight()
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.markdown.SetWidth(width - 4)
	m.ready = true
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.busy() {
		m.viewport.GotoBottom()
	}
}
