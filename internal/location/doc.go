// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package location resolves the user's position and administrative areas for
// the chat request.
//
// A PositionSource supplies coordinates, a Geocoder names the place, and a
// Locator combines both behind a small state value the UI renders as the
// location banner.
package location
