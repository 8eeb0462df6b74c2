// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// logging.go - Log destination setup for farmhand commands.

package cli

import (
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/farmhand/internal/config"
)

// LogFileName is the log file inside the data directory.
const LogFileName = "farmhand.log"

// SetupLogging routes the standard logger for cmd. The gateway and verbose
// runs log to stderr; everything else appends to ~/.farmhand/farmhand.log so
// output and the full-screen UI stay clean. The returned func closes the
// log file.
func SetupLogging(cmd Command, args Args) func() {
	log.SetFlags(log.LstdFlags)

	if cmd == CmdServe || (args.Verbose && cmd != CmdTUI) {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	dir, err := config.ConfigDir()
	if err == nil {
		err = os.MkdirAll(dir, 0700)
	}
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}

	f, err := tea.LogToFile(filepath.Join(dir, LogFileName), "farmhand")
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	return func() { f.Close() }
}
