// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses farmhand's command line and runs its commands.
//
// # Commands
//
//   - tui: full-screen chat (default when stdin and stdout are terminals)
//   - chat: line-based chat with input history and slash commands
//   - ask: one question, answer on stdout
//   - serve: the chat gateway in front of the model provider
//   - config: show, path, init, get, set, keys
//   - history: list, show, delete, clear stored conversations
//   - version
//
// Handlers return errors; main prints them with DisplayError and exits with
// GetExitCode. With --json, ask, config, history and version write a
// JSONResponse envelope on stdout.
package cli
