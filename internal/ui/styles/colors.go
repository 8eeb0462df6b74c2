// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Leaf - Brand color, assistant label, location banner
var Leaf = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}

// LeafDeep - Darker green for borders
var LeafDeep = lipgloss.AdaptiveColor{Light: "#166534", Dark: "#14532D"}

// Wheat - User label, quick action numbers
var Wheat = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}

// Sky - Informational notices
var Sky = lipgloss.AdaptiveColor{Light: "#0369A1", Dark: "#7DD3FC"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Warnings, denied location
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FCD34D"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"}

// TextMuted - Hints and secondary text
var TextMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

// Overlay - Borders, separators
var Overlay = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#374151"}
