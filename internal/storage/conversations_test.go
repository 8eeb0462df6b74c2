// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/farmhand/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleMessages() []model.Message {
	return []model.Message{
		model.NewUserMessage("What crops grow well in monsoon season?"),
		model.NewAssistantMessage("Rice, maize and soybean are good Kharif choices."),
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	conv := &StoredConversation{
		Messages: sampleMessages(),
		Location: &model.LocationData{Latitude: 18.52, Longitude: 73.85, District: "Pune", State: "Maharashtra"},
	}
	id, err := store.Save(conv)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Fatal("Save returned empty ID")
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[0].Role != model.RoleUser || loaded.Messages[1].Role != model.RoleAssistant {
		t.Errorf("roles out of order: %v, %v", loaded.Messages[0].Role, loaded.Messages[1].Role)
	}
	if loaded.Messages[1].Content != conv.Messages[1].Content {
		t.Errorf("content mismatch: %q", loaded.Messages[1].Content)
	}
	if loaded.Location == nil || loaded.Location.District != "Pune" {
		t.Errorf("location not restored: %+v", loaded.Location)
	}
	if loaded.Summary != "What crops grow well in monsoon season?" {
		t.Errorf("unexpected summary %q", loaded.Summary)
	}
}

func TestStore_SaveReplacesTranscript(t *testing.T) {
	store := openTestStore(t)

	conv := &StoredConversation{Messages: sampleMessages()[:1]}
	id, err := store.Save(conv)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	created := conv.CreatedAt

	conv.Messages = sampleMessages()
	if _, err := store.Save(conv); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Errorf("expected 2 messages after update, got %d", len(loaded.Messages))
	}
	if loaded.CreatedAt.UnixMilli() != created.UnixMilli() {
		t.Errorf("created_at changed on update")
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 1 {
		t.Errorf("expected 1 conversation, got %d", len(metas))
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Load("does-not-exist")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestStore_ListAndLoadByIndex(t *testing.T) {
	store := openTestStore(t)

	first := &StoredConversation{Messages: []model.Message{model.NewUserMessage("soil testing")}}
	second := &StoredConversation{Messages: []model.Message{model.NewUserMessage("pest control")}}
	if _, err := store.Save(first); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(metas))
	}
	for _, meta := range metas {
		if meta.MessageCount != 1 {
			t.Errorf("%s: MessageCount = %d, want 1", meta.ID, meta.MessageCount)
		}
	}

	conv, err := store.LoadByIndex(0)
	if err != nil {
		t.Fatalf("LoadByIndex failed: %v", err)
	}
	if conv.ID != metas[0].ID {
		t.Errorf("LoadByIndex(0) = %s, want %s", conv.ID, metas[0].ID)
	}
	if _, err := store.LoadByIndex(5); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound for out-of-range index, got %v", err)
	}
}

func TestStore_Search(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Save(&StoredConversation{Messages: sampleMessages()}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(&StoredConversation{Messages: []model.Message{model.NewUserMessage("Government schemes")}}); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search("SOYBEAN")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	if !strings.Contains(results[0].Summary, "monsoon") {
		t.Errorf("wrong match: %q", results[0].Summary)
	}
}

func TestStore_Delete(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Save(&StoredConversation{Messages: sampleMessages()})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("conversation still present after delete: %v", err)
	}
	if err := store.Delete(id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("second delete: expected ErrConversationNotFound, got %v", err)
	}
}

func TestStore_EnforcesLimit(t *testing.T) {
	store := openTestStore(t)
	store.MaxConversations = 2

	for _, q := range []string{"one", "two", "three"} {
		if _, err := store.Save(&StoredConversation{Messages: []model.Message{model.NewUserMessage(q)}}); err != nil {
			t.Fatal(err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 {
		t.Errorf("expected 2 conversations after limit, got %d", len(metas))
	}
}

func TestGenerateSummary(t *testing.T) {
	tests := []struct {
		name     string
		msgs     []model.Message
		expected string
	}{
		{"empty", nil, "New conversation"},
		{"assistant only", []model.Message{model.NewAssistantMessage("hi")}, "New conversation"},
		{"newlines", []model.Message{model.NewUserMessage("best\nfertilizer")}, "best fertilizer"},
		{"long", []model.Message{model.NewUserMessage(strings.Repeat("a", 60))}, strings.Repeat("a", 47) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generateSummary(tt.msgs); got != tt.expected {
				t.Errorf("generateSummary() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSession_Record(t *testing.T) {
	store := openTestStore(t)
	loc := &model.LocationData{Latitude: 26.85, Longitude: 80.95, District: "Lucknow"}
	sess := NewSession(store, func() *model.LocationData { return loc })

	msgs := sampleMessages()
	if err := sess.Record(msgs[:1]); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	id := sess.ID()
	if id == "" {
		t.Fatal("session has no ID after Record")
	}
	if err := sess.Record(msgs); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}
	if sess.ID() != id {
		t.Errorf("session ID changed between records")
	}

	conv, err := store.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Location == nil || conv.Location.District != "Lucknow" {
		t.Errorf("location not recorded: %+v", conv.Location)
	}

	sess.Reset()
	if err := sess.Record(msgs[:1]); err != nil {
		t.Fatal(err)
	}
	if sess.ID() == id {
		t.Errorf("Reset did not start a new conversation")
	}
}

func TestResumeSession(t *testing.T) {
	store := openTestStore(t)
	conv := &StoredConversation{Messages: sampleMessages()[:1]}
	id, err := store.Save(conv)
	if err != nil {
		t.Fatal(err)
	}

	sess := ResumeSession(store, conv, nil)
	if err := sess.Record(sampleMessages()); err != nil {
		t.Fatal(err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].ID != id || metas[0].MessageCount != 2 {
		t.Errorf("resume did not update in place: %+v", metas)
	}
}
