// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Unified argument parsing for all farmhand commands.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser parses the arguments of one command.
//
// Accepted forms:
//
//	--flag value     value flag
//	--flag=value     value flag
//	-f value         short value flag
//	--flag           boolean flag
//	--               everything after is positional
//
// Names passed as switches never consume the following argument, so
// "history --json list" keeps "list" positional.
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// NewArgParser parses raw. switches names the boolean flags of the command.
func NewArgParser(raw []string, switches ...string) *ArgParser {
	isSwitch := make(map[string]bool, len(switches))
	for _, s := range switches {
		isSwitch[strings.TrimLeft(s, "-")] = true
	}

	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
		raw:       raw,
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		// A lone "-" and negative numbers are values.
		if !strings.HasPrefix(arg, "-") || arg == "-" || isNumber(arg) {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(name, "="); ok {
			if b, err := strconv.ParseBool(v); err == nil && (isSwitch[k] || v == "true" || v == "false") {
				p.boolFlags[k] = b
			} else {
				p.flags[k] = v
			}
			continue
		}

		if !isSwitch[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags[name] = raw[i+1]
			i++
			continue
		}
		p.boolFlags[name] = true
	}

	return p
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns the value of a value flag, or "".
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// FlagInt returns the flag as an integer.
func (p *ArgParser) FlagInt(name string) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return 0, fmt.Errorf("flag --%s not set", strings.TrimLeft(name, "-"))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("flag --%s must be an integer: %w", strings.TrimLeft(name, "-"), err)
	}
	return n, nil
}

// FlagIntOrDefault returns the flag as an integer, or def when unset or
// invalid.
func (p *ArgParser) FlagIntOrDefault(name string, def int) int {
	n, err := p.FlagInt(name)
	if err != nil {
		return def
	}
	return n
}

// BoolFlag reports whether a boolean flag is set.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// AnyBool reports whether any of the named switches is set, e.g. "q" and
// "quiet".
func (p *ArgParser) AnyBool(names ...string) bool {
	for _, n := range names {
		if p.BoolFlag(n) {
			return true
		}
	}
	return false
}

// Positional returns positional argument index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positionals starting at index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// HasFlag reports whether name was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, s := p.flags[name]
	_, b := p.boolFlags[name]
	return s || b
}

// Raw returns the unparsed arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// JoinPositional joins the positionals from index with spaces.
func (p *ArgParser) JoinPositional(index int) string {
	return strings.Join(p.PositionalFrom(index), " ")
}

// ParsePositiveInt parses s as an integer greater than zero.
func ParsePositiveInt(s, field string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", field, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", field, n)
	}
	return n, nil
}
