// farmhand - a farming assistant for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/jeranaias/farmhand/internal/cli"
	"github.com/jeranaias/farmhand/internal/server"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	server.Version = Version
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitUsageError)
	}

	closeLog := cli.SetupLogging(cmd, args)
	err = cli.Run(cmd, args)
	closeLog()

	if err != nil {
		if !cli.IsReported(err) {
			cli.DisplayError(cmd.String(), err, args.JSON)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
