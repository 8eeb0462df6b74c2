// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "strings"

// DataPrefix marks an SSE data field. The space is part of the prefix.
const DataPrefix = "data: "

// DoneMarker is the payload that ends a chat stream.
const DoneMarker = "[DONE]"

// EventKind classifies a single stream line.
type EventKind int

const (
	// EventComment is a blank line or a ":" heartbeat.
	EventComment EventKind = iota
	// EventField is any line that is not a data field (event:, id:, retry:).
	EventField
	// EventData carries a payload to hand to ExtractDelta.
	EventData
	// EventDone is the terminator frame.
	EventDone
)

// String returns the kind name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventComment:
		return "comment"
	case EventField:
		return "field"
	case EventData:
		return "data"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a classified line.
type Event struct {
	Kind    EventKind
	Payload string
}

// ParseLine classifies one line. The line must already have its trailing
// carriage return removed.
func ParseLine(line string) Event {
	if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
		return Event{Kind: EventComment}
	}
	if !strings.HasPrefix(line, DataPrefix) {
		return Event{Kind: EventField}
	}
	payload := strings.TrimSpace(line[len(DataPrefix):])
	if payload == DoneMarker {
		return Event{Kind: EventDone}
	}
	return Event{Kind: EventData, Payload: payload}
}
