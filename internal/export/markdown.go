// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders a conversation as a readable Markdown document.
// Message bodies are written as-is since replies are already Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if conv == nil {
		return nil, errors.New("conversation is nil")
	}

	var sb strings.Builder
	title := conv.Summary
	if title == "" {
		title = "Conversation"
	}
	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(conv.CreatedAt))
		fmt.Fprintf(&sb, "- **Last Updated**: %s\n", formatTimestamp(conv.UpdatedAt))
		if conv.Location != nil {
			if label := conv.Location.Label(); label != "" {
				fmt.Fprintf(&sb, "- **Location**: %s\n", label)
			}
			fmt.Fprintf(&sb, "- **Coordinates**: %.4f, %.4f\n", conv.Location.Latitude, conv.Location.Longitude)
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(conv.Messages))
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range conv.Messages {
		fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg.Role))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "*Exported from farmhand on %s*\n", e.options.now().Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

func roleLabel(r model.Role) string {
	if r == "" {
		return "Unknown"
	}
	return r.DisplayName()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
		"\n", " ",
	)
	return r.Replace(s)
}
