// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for farmhand.
//
// Conversations are kept in a single SQLite database (pure Go driver, no
// cgo) with one row per conversation and one row per message.
//
// # Key Types
//
//   - Store: SQLite-backed conversation store
//   - StoredConversation: Conversation with its transcript and metadata
//   - ConversationMeta: Lightweight metadata for listing
//   - Session: Records one live conversation after every turn
//
// # Usage
//
//	store, err := storage.Open(path)
//	sess := storage.NewSession(store, locator.Current)
//	ctrl := conversation.NewController(client, conversation.WithRecorder(sess))
//
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
//
// # Storage Location
//
// The database lives at ~/.farmhand/history.db by default.
package storage
