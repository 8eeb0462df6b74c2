// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/location"
	"github.com/jeranaias/farmhand/internal/speech"
)

// SnapshotMsg carries a controller snapshot.
type SnapshotMsg struct {
	Snapshot conversation.Snapshot
}

// TurnDoneMsg is returned when Submit returns.
type TurnDoneMsg struct {
	Err error
}

// LocationMsg carries a resolved location state.
type LocationMsg struct {
	State location.State
}

// SpeechStatusMsg carries a speaker status change.
type SpeechStatusMsg struct {
	Status speech.Status
}

// SpeakDoneMsg is returned when Speak returns.
type SpeakDoneMsg struct {
	Err error
}

// VoiceDoneMsg is returned when a recording ends.
type VoiceDoneMsg struct {
	Text string
	Err  error
}

// resetDoneMsg follows a new-conversation reset.
type resetDoneMsg struct{}
