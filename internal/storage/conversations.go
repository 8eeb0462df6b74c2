// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/util"
)

// DefaultMaxConversations is how many conversations are kept.
const DefaultMaxConversations = 100

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is a persisted conversation.
type StoredConversation struct {
	ID        string
	Summary   string
	Location  *model.LocationData
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []model.Message
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string
	Summary      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Place        string
}

// =============================================================================
// STORE
// =============================================================================

// Store persists conversations in SQLite.
type Store struct {
	db   *sql.DB
	path string

	// MaxConversations limits stored conversations (0 = unlimited).
	MaxConversations int
}

// DefaultPath returns ~/.farmhand/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".farmhand", "history.db"), nil
}

// Open opens or creates the database at path. ":memory:" is accepted for
// tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path, MaxConversations: DefaultMaxConversations}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save writes conv, replacing its transcript, and returns its ID.
func (s *Store) Save(conv *StoredConversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Summary == "" {
		conv.Summary = generateSummary(conv.Messages)
	}
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	var location sql.NullString
	if conv.Location != nil {
		data, err := json.Marshal(conv.Location)
		if err != nil {
			return "", fmt.Errorf("failed to marshal location: %w", err)
		}
		location = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, summary, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			location = excluded.location,
			updated_at = excluded.updated_at`,
		conv.ID, conv.Summary, location, conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return "", fmt.Errorf("failed to save messages: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO messages (conversation_id, seq, role, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to save messages: %w", err)
	}
	defer stmt.Close()
	for i, msg := range conv.Messages {
		if _, err := stmt.Exec(conv.ID, i, string(msg.Role), msg.Content); err != nil {
			return "", fmt.Errorf("failed to save messages: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	if s.MaxConversations > 0 {
		s.enforceLimit()
	}
	return conv.ID, nil
}

// generateSummary uses the first user message, truncated to 50 runes.
func generateSummary(msgs []model.Message) string {
	for _, msg := range msgs {
		if msg.Role == model.RoleUser && msg.Content != "" {
			content := strings.ReplaceAll(msg.Content, "\r", "")
			content = strings.ReplaceAll(content, "\n", " ")
			return util.TruncateRunes(content, 50)
		}
	}
	return "New conversation"
}

// enforceLimit removes the oldest conversations over the limit.
func (s *Store) enforceLimit() {
	_, err := s.db.Exec(`
		DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT -1 OFFSET ?
		)`, s.MaxConversations)
	if err != nil {
		// Non-fatal; the next save retries.
		return
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *Store) Load(id string) (*StoredConversation, error) {
	var (
		conv      StoredConversation
		location  sql.NullString
		createdMs int64
		updatedMs int64
	)
	err := s.db.QueryRow(`SELECT id, summary, location, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Summary, &location, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.CreatedAt = time.UnixMilli(createdMs)
	conv.UpdatedAt = time.UnixMilli(updatedMs)

	if location.Valid {
		var loc model.LocationData
		if err := json.Unmarshal([]byte(location.String), &loc); err == nil {
			conv.Location = &loc
		}
	}

	rows, err := s.db.Query(`SELECT role, content FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = []model.Message{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to load messages: %w", err)
		}
		conv.Messages = append(conv.Messages, model.Message{Role: model.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return &conv, nil
}

// LoadByIndex loads a conversation by its index in List (0 = most recent).
func (s *Store) LoadByIndex(index int) (*StoredConversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}
	return s.Load(metas[index].ID)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

const listQuery = `
	SELECT c.id, c.summary, c.location, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
	FROM conversations c`

// List returns all saved conversations, most recent first.
func (s *Store) List() ([]ConversationMeta, error) {
	return s.queryMetas(listQuery + ` ORDER BY c.updated_at DESC`)
}

// Search finds conversations whose summary or messages contain query.
func (s *Store) Search(query string) ([]ConversationMeta, error) {
	like := "%" + strings.ToLower(query) + "%"
	return s.queryMetas(listQuery+`
		WHERE lower(c.summary) LIKE ?
		   OR EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id AND lower(m.content) LIKE ?)
		ORDER BY c.updated_at DESC`, like, like)
}

func (s *Store) queryMetas(query string, args ...any) ([]ConversationMeta, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var (
			meta      ConversationMeta
			location  sql.NullString
			createdMs int64
			updatedMs int64
		)
		if err := rows.Scan(&meta.ID, &meta.Summary, &location, &createdMs, &updatedMs, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		meta.CreatedAt = time.UnixMilli(createdMs)
		meta.UpdatedAt = time.UnixMilli(updatedMs)
		if location.Valid {
			var loc model.LocationData
			if json.Unmarshal([]byte(location.String), &loc) == nil {
				meta.Place = loc.Label()
			}
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation and its messages.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Clear removes all saved conversations.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM conversations`)
	return err
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
