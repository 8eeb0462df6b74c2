// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for farmhand.
//
// The view renders a conversation.Controller: the location banner, the
// welcome screen with quick actions while the transcript is empty, the
// streaming transcript (assistant replies rendered as markdown), and an
// input that is disabled while a turn is in flight.
//
// # Wiring
//
// Controller and speaker notifications arrive on other goroutines and are
// forwarded to the program through a Bridge:
//
//	bridge := chat.NewBridge()
//	ctrl := conversation.NewController(client, conversation.WithObserver(bridge.Snapshot))
//	m := chat.New(chat.Options{Conversation: ctrl, Locator: loc, Theme: theme})
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	go bridge.Run(p)
//	defer bridge.Close()
//	_, err := p.Run()
//
// # Keys
//
//	Enter    send          Esc      stop the reply
//	1-6      quick action  Ctrl+S   speak / stop speaking
//	Ctrl+V   voice input   Ctrl+R   location
//	Ctrl+N   new chat      PgUp/Dn  scroll
//	Ctrl+C   quit
package chat
