// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/location"
	"github.com/jeranaias/farmhand/internal/speech"
	"github.com/jeranaias/farmhand/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Conversation is the turn controller. *conversation.Controller implements it.
type Conversation interface {
	Submit(ctx context.Context, text string, src conversation.InputSource) error
	Abort()
	Reset()
	Busy() bool
	Snapshot() conversation.Snapshot
}

// Locator resolves the farmer's location. *location.Locator implements it.
type Locator interface {
	Request(ctx context.Context) location.State
	State() location.State
}

// Speaker reads replies aloud. *speech.Speaker implements it.
type Speaker interface {
	Speak(ctx context.Context, text string, messageID int) error
	Stop()
	Status() speech.Status
}

// Listener records a spoken question. *speech.Listener implements it.
type Listener interface {
	Listen(ctx context.Context) (string, error)
	Stop()
}

// Options configures the chat view. Locator, Speaker and Listener are
// optional.
type Options struct {
	Conversation Conversation
	Locator      Locator
	Speaker      Speaker
	Listener     Listener
	Theme        *styles.Theme
	ShowHints    bool
	// OnNewChat runs after the transcript is reset, e.g. to start a new
	// stored conversation.
	OnNewChat func()
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	conv      Conversation
	locator   Locator
	speaker   Speaker
	listener  Listener
	theme     *styles.Theme
	keys      KeyMap
	showHints bool
	onNewChat func()

	// Dimensions
	width  int
	height int
	ready  bool

	// Latest state from the collaborators
	snap     conversation.Snapshot
	loc      location.State
	speaking speech.Status

	// A recording is in progress
	listening bool

	// Transient footer line
	notice string

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	markdown *markdownRenderer
}

// New creates the chat model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about crops, weather, soil, pests..."
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		conv:      opts.Conversation,
		locator:   opts.Locator,
		speaker:   opts.Speaker,
		listener:  opts.Listener,
		theme:     theme,
		keys:      DefaultKeyMap(),
		showHints: opts.ShowHints,
		onNewChat: opts.OnNewChat,
		input:     ti,
		spinner:   sp,
		viewport:  viewport.New(80, 20),
		markdown:  newMarkdownRenderer(theme.GlamourStyle()),
	}
	if m.conv != nil {
		m.snap = m.conv.Snapshot()
	}
	if m.locator != nil {
		m.loc = m.locator.State()
	}
	return m
}

// Init starts the cursor blink and the first location request.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.locator != nil {
		cmds = append(cmds, m.locateCmd())
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) submitCmd(text string, src conversation.InputSource) tea.Cmd {
	conv := m.conv
	return func() tea.Msg {
		return TurnDoneMsg{Err: conv.Submit(context.Background(), text, src)}
	}
}

func (m Model) locateCmd() tea.Cmd {
	loc := m.locator
	return func() tea.Msg {
		return LocationMsg{State: loc.Request(context.Background())}
	}
}

func (m Model) speakCmd(text string, id int) tea.Cmd {
	sp := m.speaker
	return func() tea.Msg {
		return SpeakDoneMsg{Err: sp.Speak(context.Background(), text, id)}
	}
}

func (m Model) listenCmd() tea.Cmd {
	l := m.listener
	return func() tea.Msg {
		text, err := l.Listen(context.Background())
		return VoiceDoneMsg{Text: text, Err: err}
	}
}

// resetCmd runs off the update loop: Reset publishes a snapshot.
func (m Model) resetCmd() tea.Cmd {
	conv, hook := m.conv, m.onNewChat
	return func() tea.Msg {
		conv.Reset()
		if hook != nil {
			hook()
		}
		return resetDoneMsg{}
	}
}
