// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/speech"
)

// Bridge forwards notifications from other goroutines to a running program
// in order. Send never blocks, so observers may fire from inside Update.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewBridge creates an idle bridge.
func NewBridge() *Bridge {
	return &Bridge{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Send queues msg for the program.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Snapshot is a conversation.Controller observer.
func (b *Bridge) Snapshot(s conversation.Snapshot) {
	b.Send(SnapshotMsg{Snapshot: s})
}

// Speech is a speech.Speaker change callback.
func (b *Bridge) Speech(st speech.Status) {
	b.Send(SpeechStatusMsg{Status: st})
}

// Run delivers queued messages to p until Close.
func (b *Bridge) Run(p interface{ Send(tea.Msg) }) {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}

		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()

		for _, msg := range batch {
			p.Send(msg)
		}
	}
}

// Close stops Run and drops further messages.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}
