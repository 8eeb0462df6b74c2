// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

// InputSource records where a submitted query came from.
type InputSource string

const (
	SourceTyped       InputSource = "typed"
	SourceVoice       InputSource = "voice"
	SourceQuickAction InputSource = "quick_action"
)

// QuickAction is a canned query offered on the empty conversation screen.
type QuickAction struct {
	Label string
	Query string
}

// QuickActions are shown in this order and selected with keys 1 to 6.
var QuickActions = []QuickAction{
	{Label: "Crop Selection", Query: "What crops should I plant this season based on my location?"},
	{Label: "Pest Control", Query: "How can I protect my crops from common pests?"},
	{Label: "Weather Tips", Query: "What weather conditions should I prepare for this week?"},
	{Label: "Soil Health", Query: "How can I improve my soil health naturally?"},
	{Label: "Market Prices", Query: "What are the current market prices for crops in my region?"},
	{Label: "Government Schemes", Query: "What government schemes and subsidies are available for farmers in my area?"},
}

// QuickActionAt returns the 1-based action n.
func QuickActionAt(n int) (QuickAction, bool) {
	if n < 1 || n > len(QuickActions) {
		return QuickAction{}, false
	}
	return QuickActions[n-1], true
}
