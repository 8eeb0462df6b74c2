// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownCacheSize bounds remembered renders; streaming produces one
// entry per delta for the reply in progress.
const markdownCacheSize = 64

// markdownRenderer renders assistant replies with glamour, caching by
// content. It falls back to plain text when glamour cannot be built.
type markdownRenderer struct {
	style string
	width int
	tr    *glamour.TermRenderer
	cache map[string]string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	r := &markdownRenderer{style: style, width: 76}
	r.build()
	return r
}

// SetWidth changes the wrap width, rebuilding the renderer when it differs.
func (r *markdownRenderer) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == r.width && r.tr != nil {
		return
	}
	r.width = width
	r.build()
}

func (r *markdownRenderer) build() {
	r.cache = make(map[string]string)
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		r.tr = nil
		return
	}
	r.tr = tr
}

// Render returns content rendered for the terminal.
func (r *markdownRenderer) Render(content string) string {
	if r.tr == nil || content == "" {
		return content
	}
	if out, ok := r.cache[content]; ok {
		return out
	}
	out, err := r.tr.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	if len(r.cache) >= markdownCacheSize {
		r.cache = make(map[string]string)
	}
	r.cache[content] = out
	return out
}
