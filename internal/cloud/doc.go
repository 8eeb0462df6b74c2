// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud holds the HTTP clients on both sides of the farmer-chat
// gateway.
//
// # Key Types
//
//   - GatewayClient: posts the transcript and location to the chat endpoint
//     and hands back the raw event stream
//   - GatewayError: classified non-2xx or transport failure
//   - UpstreamClient: used by the gateway server to open a streaming chat
//     completion with the language-model provider
//   - UpstreamError: provider failure carrying the HTTP status
//
// # Usage
//
//	client := cloud.NewGatewayClient(chatURL, apiKey)
//	body, err := client.Stream(ctx, cloud.ChatRequest{Messages: msgs, Location: loc})
//	if errors.Is(err, cloud.ErrRateLimited) {
//	    // back off
//	}
//	defer body.Close()
//
// # Security
//
// API keys are sent as bearer tokens and never logged.
package cloud
