// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat pipeline.
//
// # Key Types
//
//   - Role: Message role enumeration (user, assistant, system)
//   - Message: Single transcript entry with role and content
//   - LocationData: Optional coordinates and administrative areas attached
//     to an outgoing chat request
//
// # Usage
//
// Build a transcript and attach a location:
//
//	msgs := []model.Message{model.NewUserMessage("When should I sow wheat?")}
//	loc := &model.LocationData{Latitude: 26.85, Longitude: 80.95, State: "Uttar Pradesh"}
//	fmt.Println(loc.Label())
package model
