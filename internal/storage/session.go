// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sync"
	"time"

	"github.com/jeranaias/farmhand/internal/model"
)

// Session records a single live conversation. It satisfies
// conversation.Recorder.
type Session struct {
	store    *Store
	location func() *model.LocationData

	mu        sync.Mutex
	id        string
	createdAt time.Time
}

// NewSession starts a new conversation in store. location may be nil.
func NewSession(store *Store, location func() *model.LocationData) *Session {
	return &Session{store: store, location: location}
}

// ResumeSession continues the stored conversation conv.
func ResumeSession(store *Store, conv *StoredConversation, location func() *model.LocationData) *Session {
	return &Session{store: store, location: location, id: conv.ID, createdAt: conv.CreatedAt}
}

// ID returns the conversation ID, empty until the first Record.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Record saves msgs as the conversation's transcript.
func (s *Session) Record(msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &StoredConversation{
		ID:        s.id,
		CreatedAt: s.createdAt,
		Messages:  msgs,
	}
	if s.location != nil {
		conv.Location = s.location()
	}
	id, err := s.store.Save(conv)
	if err != nil {
		return err
	}
	s.id = id
	s.createdAt = conv.CreatedAt
	return nil
}

// Reset makes the next Record start a new conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.createdAt = time.Time{}
}
