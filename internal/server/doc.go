// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the farmer-chat gateway: a small HTTP service that
// prepends the farmer-assistant persona to a transcript and relays the
// provider's event stream back to the client unchanged.
//
// # Endpoints
//
//   - POST    /functions/v1/farmer-chat - streaming chat (path configurable)
//   - OPTIONS /functions/v1/farmer-chat - CORS preflight
//   - GET     /health                   - Health check
//
// # Middleware
//
//   - Request IDs (X-Request-ID)
//   - CORS headers on every response
//   - Request logging and panic recovery
//   - Per-client rate limiting
//   - Optional bearer token for clients
//
// # Usage
//
//	srv := server.New(server.Settings{Listen: "127.0.0.1:8787"},
//	    cloud.NewUpstreamClient(url, key))
//	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//		log.Fatal(err)
//	}
package server
