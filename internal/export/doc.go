// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved conversations to Markdown or JSON files.
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ExportToFile(conv, exp, &export.Options{OutputDir: "."})
package export
