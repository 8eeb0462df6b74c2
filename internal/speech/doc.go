// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech reads assistant replies aloud.
//
// CleanForSpeech strips markdown, TTSClient fetches synthesized audio from
// the remote text-to-speech function, and Speaker plays it through an
// external player command, falling back to a local synthesis command when
// the remote path fails.
package speech
