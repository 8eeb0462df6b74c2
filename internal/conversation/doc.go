// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation runs chat turns and keeps the transcript consistent
// while assistant text streams in.
//
// # Key Types
//
//   - Turn: reducer value that folds one stream's deltas into the transcript
//   - Controller: turn orchestration and the Idle/Sending/Streaming/Error
//     state machine
//   - Snapshot: immutable view published to presentation after each change
//   - TurnError: classified failure surfaced once per turn
//   - QuickAction: canned farmer queries
//
// # Usage
//
//	ctrl := conversation.NewController(gateway,
//	    conversation.WithObserver(func(s conversation.Snapshot) { render(s) }),
//	)
//	if err := ctrl.Submit(ctx, "When should I sow wheat?", conversation.SourceTyped); err != nil {
//	    var turnErr *conversation.TurnError
//	    if errors.As(err, &turnErr) {
//	        fmt.Println(turnErr.Kind.Message())
//	    }
//	}
package conversation
