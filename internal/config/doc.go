// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for farmhand.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, validation, and file watching for the
// gateway server.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ClientConfig: Chat gateway endpoint used by the front-ends
//   - LocationConfig: Position source and reverse geocoder
//   - SpeechConfig: Remote text-to-speech and local playback
//   - ServerConfig: The farmer-chat gateway served by `farmhand serve`
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FARMHAND_*, LOVABLE_API_KEY)
//   - ~/.farmhand/config.toml
//   - ~/.farmhand/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := cloud.NewGatewayClient(cfg.Client.ChatURL, cfg.Client.APIKey)
package config
