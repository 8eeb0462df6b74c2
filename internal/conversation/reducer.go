// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "github.com/jeranaias/farmhand/internal/model"

// Turn folds the deltas of one assistant response into a transcript.
//
// Turn is a value: Apply returns a new Turn and never writes through the
// receiver's Messages slice, so earlier snapshots stay valid.
type Turn struct {
	Messages    []model.Message
	Accumulator string
}

// NewTurn starts a turn over msgs with an empty accumulator.
func NewTurn(msgs []model.Message) Turn {
	return Turn{Messages: msgs}
}

// Apply adds delta to the accumulated response. If the transcript ends with
// an assistant message its content becomes the accumulator; otherwise a new
// assistant message is appended.
func (t Turn) Apply(delta string) Turn {
	acc := t.Accumulator + delta
	n := len(t.Messages)

	if n > 0 && t.Messages[n-1].Role == model.RoleAssistant {
		msgs := model.CloneMessages(t.Messages)
		msgs[n-1].Content = acc
		return Turn{Messages: msgs, Accumulator: acc}
	}

	msgs := make([]model.Message, n, n+1)
	copy(msgs, t.Messages)
	msgs = append(msgs, model.NewAssistantMessage(acc))
	return Turn{Messages: msgs, Accumulator: acc}
}

// ApplyAll folds deltas in order.
func (t Turn) ApplyAll(deltas ...string) Turn {
	for _, d := range deltas {
		t = t.Apply(d)
	}
	return t
}
