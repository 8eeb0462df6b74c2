// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat command for farmhand.
//
// ACCESSIBILITY: Falls back to line mode when stdout is not a terminal

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/farmhand/internal/ui/chat"
	"github.com/jeranaias/farmhand/internal/ui/styles"
)

// HandleTUI runs the full-screen chat UI. Without a terminal it falls back
// to the line-based chat.
func HandleTUI(args Args) error {
	if !Interactive() {
		return HandleChat(args)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, args.Resume)
	if err != nil {
		return err
	}
	defer a.Close()

	bridge := chat.NewBridge()
	defer bridge.Close()

	ctrl := a.controller(bridge.Snapshot)

	opts := chat.Options{
		Conversation: ctrl,
		Locator:      a.locator,
		Theme:        styles.NewTheme(cfg.UI.Theme),
		ShowHints:    cfg.UI.ShowHints,
		OnNewChat:    a.newChat,
	}
	// Assign only a non-nil speaker so the interface stays nil when speech
	// is disabled.
	if a.speaker != nil {
		a.speaker.OnChange(bridge.Speech)
		opts.Speaker = a.speaker
	}
	if a.listener != nil {
		opts.Listener = a.listener
	}

	p := tea.NewProgram(chat.New(opts), tea.WithAltScreen())
	go bridge.Run(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	ctrl.Abort()
	return nil
}
