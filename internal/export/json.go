// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/storage"
)

// JSONExporter writes the complete conversation, ignoring IncludeMetadata,
// so the file mirrors what is stored.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonConversation struct {
	ID         string              `json:"id"`
	Summary    string              `json:"summary"`
	Location   *model.LocationData `json:"location,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	ExportedAt time.Time           `json:"exported_at"`
	Messages   []model.Message     `json:"messages"`
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if conv == nil {
		return nil, errors.New("conversation is nil")
	}
	msgs := conv.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	return json.MarshalIndent(jsonConversation{
		ID:         conv.ID,
		Summary:    conv.Summary,
		Location:   conv.Location,
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
		ExportedAt: e.options.now(),
		Messages:   msgs,
	}, "", "  ")
}

func (e *JSONExporter) FileExtension() string { return ".json" }

func (e *JSONExporter) MimeType() string { return "application/json" }
