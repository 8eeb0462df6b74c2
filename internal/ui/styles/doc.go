// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the farmhand TUI.
//
// Colors are Lip Gloss AdaptiveColors; the theme picks the light or dark
// variant from the configured mode or, in "auto", from the terminal
// background reported by termenv.
package styles
