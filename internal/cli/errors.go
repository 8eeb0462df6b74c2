// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Command errors and exit codes.

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/farmhand/internal/cloud"
	"github.com/jeranaias/farmhand/internal/config"
	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command action.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports invalid arguments.
type UsageError struct {
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("%s\nExample: %s", e.Reason, e.Example)
	}
	return e.Reason
}

// ErrMissingArgument reports a missing required argument.
func ErrMissingArgument(name, example string) error {
	return &UsageError{Reason: name + " is required", Example: example}
}

// reportedError wraps a failure whose output was already written, e.g. as
// a JSON response.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to stderr, or as a JSON response on stdout.
func DisplayError(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print()
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
}

// GetExitCode maps err to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var validateErrs config.ValidateErrors
	if errors.As(err, &validateErrs) {
		return ExitConfigError
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Command == "config" {
		return ExitConfigError
	}

	if errors.Is(err, storage.ErrConversationNotFound) {
		return ExitNotFoundError
	}

	var gwErr *cloud.GatewayError
	if errors.As(err, &gwErr) {
		return ExitNetworkError
	}
	var turnErr *conversation.TurnError
	if errors.As(err, &turnErr) && turnErr.Kind != conversation.KindCanceled {
		return ExitNetworkError
	}

	return ExitGeneralError
}
