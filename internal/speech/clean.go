// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"regexp"
	"strings"
)

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// Applied in order; bold must run before italic.
var markdownRewrites = []rewrite{
	{regexp.MustCompile(`#{1,6}\s`), ""},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`[-*]\s`), ""},
	{regexp.MustCompile(`\n{2,}`), ". "},
	{regexp.MustCompile(`\n`), " "},
}

// CleanForSpeech removes markdown so it is not read out literally.
func CleanForSpeech(text string) string {
	for _, rw := range markdownRewrites {
		text = rw.re.ReplaceAllString(text, rw.repl)
	}
	return strings.TrimSpace(text)
}
