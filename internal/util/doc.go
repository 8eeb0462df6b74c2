// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across farmhand.
//
// # Key Functions
//
// Text:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: Truncation by terminal display width
//   - StringWidth: Display width of a string
//   - OneLine: Collapse whitespace for single-line previews
//
// Files:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - DataDir: The ~/.farmhand directory
//   - ExpandHome: Resolve a leading ~ in paths
//
// # Usage
//
//	summary := util.TruncateRunes(text, 50)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
