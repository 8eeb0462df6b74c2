// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/jeranaias/farmhand/internal/config"
	"github.com/jeranaias/farmhand/internal/util"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdServe
	CmdConfig
	CmdHistory
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdServe:
		return "serve"
	case CmdConfig:
		return "config"
	case CmdHistory:
		return "history"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigPath string
	Theme      string
	NoHistory  bool

	// Command-specific
	Query      string
	Subcommand string
	Resume     string

	// Raw holds the arguments after the command name.
	Raw    []string
	Parser *ArgParser
}

// switches are the boolean flags of every command.
var switches = []string{"q", "quiet", "v", "verbose", "json", "no-history", "h", "help", "version", "force", "all"}

const usageText = `farmhand - a farming assistant for the terminal

Usage:
  farmhand                         Start the chat UI (default on a terminal)
  farmhand chat                    Line-based chat
  farmhand ask "question"          Ask a single question
  farmhand serve                   Run the chat gateway
  farmhand config [show|path|init|get|set]
  farmhand history [list|show|export|delete|clear]
  farmhand version

Chat commands:
  /quick N      Send quick action N (1-6)
  /speak        Read the last answer aloud (again to stop)
  /voice        Ask by voice (needs speech.recognizer)
  /location     Detect location again
  /new          Start a new conversation
  /help         Show chat commands
  /quit         Leave

Config:
  farmhand config show             Print the configuration (secrets redacted)
  farmhand config path             Print the config file path
  farmhand config init [--force]   Write a default config file
  farmhand config get KEY          Print one value, e.g. server.model
  farmhand config set KEY VALUE    Change one value and save

History:
  farmhand history list [--search TEXT]
  farmhand history show ID|N       N is the position in list, starting at 1
  farmhand history export ID|N [--format md|json] [--out DIR]
  farmhand history delete ID|N
  farmhand history clear --force

Resume a stored conversation:
  farmhand --resume ID|N
  farmhand chat --resume ID|N

Global flags:
  --config PATH     Use this config file
  --theme NAME      auto, dark or light
  --no-history      Do not store this conversation
  --json            Machine-readable output (ask, config, history, version)
  -q, --quiet       Only print answers
  -v, --verbose     Log to stderr
  -h, --help        Show this help

Version: %s
`

// PrintUsage prints the usage text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("farmhand version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s\n", runtime.Version())
}

// Parse parses argv (without the program name).
func Parse(argv []string) (Command, Args, error) {
	name, rest := splitCommand(argv)
	p := NewArgParser(rest, switches...)

	args := Args{
		Quiet:      p.AnyBool("q", "quiet"),
		Verbose:    p.AnyBool("v", "verbose"),
		JSON:       p.BoolFlag("json"),
		ConfigPath: p.Flag("config"),
		Theme:      p.Flag("theme"),
		NoHistory:  p.BoolFlag("no-history"),
		Resume:     p.Flag("resume"),
		Subcommand: p.Subcommand(),
		Raw:        rest,
		Parser:     p,
	}

	if p.AnyBool("h", "help") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version") {
		return CmdVersion, args, nil
	}

	switch name {
	case "", "tui":
		return CmdTUI, args, nil
	case "chat":
		return CmdChat, args, nil
	case "ask":
		args.Query = p.JoinPositional(0)
		args.Subcommand = ""
		return CmdAsk, args, nil
	case "serve", "server":
		return CmdServe, args, nil
	case "config":
		return CmdConfig, args, nil
	case "history":
		return CmdHistory, args, nil
	case "version":
		return CmdVersion, args, nil
	case "help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, fmt.Errorf("unknown command %q (see 'farmhand help')", name)
	}
}

// splitCommand separates the command name from its arguments. Global flags
// may precede the name.
func splitCommand(argv []string) (string, []string) {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if !strings.HasPrefix(arg, "-") {
			rest := append(append([]string{}, argv[:i]...), argv[i+1:]...)
			return strings.ToLower(arg), rest
		}
		// Skip the value of a leading value flag.
		if takesValue(arg) && i+1 < len(argv) {
			i++
		}
	}
	return "", argv
}

func takesValue(flag string) bool {
	switch flag {
	case "--config", "--theme", "--resume":
		return true
	}
	return false
}

// Run executes cmd.
func Run(cmd Command, args Args) error {
	switch cmd {
	case CmdTUI:
		return HandleTUI(args)
	case CmdChat:
		return HandleChat(args)
	case CmdAsk:
		return HandleAsk(args)
	case CmdServe:
		return HandleServe(args)
	case CmdConfig:
		return HandleConfig(args)
	case CmdHistory:
		return HandleHistory(args)
	case CmdVersion:
		return HandleVersion(args)
	default:
		PrintUsage()
		return nil
	}
}

// HandleVersion prints version information.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
	}
	PrintVersion()
	return nil
}

// loadConfig loads the configuration named by --config, or the default
// file, and applies command-line overrides.
func loadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(util.ExpandHome(args.ConfigPath))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "load", Reason: "could not load configuration", Err: err}
	}
	if args.Theme != "" {
		cfg.UI.Theme = args.Theme
		if err := cfg.Validate(); err != nil {
			return nil, &UsageError{Reason: err.Error()}
		}
	}
	if args.NoHistory {
		cfg.Storage.Enabled = false
	}
	config.SetGlobal(cfg)
	return cfg, nil
}
