// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration commands for farmhand.
//
// SECURITY: Secrets are redacted before any value is printed

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/jeranaias/farmhand/internal/config"
	"github.com/jeranaias/farmhand/internal/util"
)

// HandleConfig runs "config show|path|init|get|set|keys".
func HandleConfig(args Args) error {
	switch sub := args.Subcommand; sub {
	case "", "show":
		return configShow(args)
	case "path":
		return configPath(args)
	case "init":
		return configInit(args)
	case "get":
		return configGet(args)
	case "set":
		return configSet(args)
	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Println(k)
		}
		return nil
	default:
		return &UsageError{Reason: fmt.Sprintf("unknown config command %q", sub), Example: "farmhand config show"}
	}
}

// configFile returns the file the config commands read and write.
func configFile(args Args) (string, error) {
	if args.ConfigPath != "" {
		return util.ExpandHome(args.ConfigPath), nil
	}
	return config.ActivePath()
}

// loadFile reads path over the defaults without environment overrides, so
// that saving never copies values that only came from the environment.
func loadFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "load", Reason: path, Err: err}
	}
	return cfg, nil
}

func saveFile(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func configShow(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config show", json.RawMessage(cfg.String())).Print()
	}
	return printConfig(os.Stdout, cfg.String(), IsStdoutTTY() && ColorsEnabled())
}

// printConfig writes the JSON rendering of the config, highlighted when color
// is on.
func printConfig(w io.Writer, text string, color bool) error {
	if color {
		if err := quick.Highlight(w, text+"\n", "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func configPath(args Args) error {
	path, err := configFile(args)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	if args.JSON {
		return NewJSONResponse("config path", ConfigPathData{Path: path, Exists: statErr == nil}).Print()
	}
	fmt.Println(path)
	return nil
}

func configInit(args Args) error {
	path, err := configFile(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !args.Parser.BoolFlag("force") {
		return &UsageError{Reason: fmt.Sprintf("%s already exists", path), Example: "farmhand config init --force"}
	}
	if err := saveFile(config.Default(), path); err != nil {
		return &CommandError{Command: "config", Action: "init", Reason: "could not write config", Err: err}
	}
	if !args.Quiet {
		fmt.Println(SuccessStyle.Render("Wrote " + path))
	}
	return nil
}

func configGet(args Args) error {
	key := args.Parser.Positional(1)
	if key == "" {
		return ErrMissingArgument("key", "farmhand config get server.model")
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	v, err := cfg.Get(key)
	if err != nil {
		return &UsageError{Reason: err.Error(), Example: "farmhand config keys"}
	}
	if config.IsSecret(key) && v != "" {
		v = "[REDACTED]"
	}
	if args.JSON {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": v}).Print()
	}
	if v == nil {
		fmt.Println("(unset)")
		return nil
	}
	fmt.Println(v)
	return nil
}

func configSet(args Args) error {
	key := args.Parser.Positional(1)
	if key == "" || args.Parser.PositionalCount() < 3 {
		return ErrMissingArgument("key and value", "farmhand config set ui.theme dark")
	}
	value := args.Parser.JoinPositional(2)

	path, err := configFile(args)
	if err != nil {
		return err
	}
	cfg, err := loadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Reason: err.Error(), Example: "farmhand config keys"}
	}
	if err := cfg.Validate(); err != nil {
		return &CommandError{Command: "config", Action: "set", Reason: "invalid value", Err: err}
	}
	if err := saveFile(cfg, path); err != nil {
		return &CommandError{Command: "config", Action: "set", Reason: "could not save config", Err: err}
	}
	if !args.Quiet {
		shown := value
		if config.IsSecret(key) {
			shown = "[REDACTED]"
		}
		fmt.Printf("%s = %s\n", key, shown)
	}
	return nil
}
