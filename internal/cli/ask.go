// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command for farmhand.
//
// CLI: Scriptable single question with --json output
//
// Command: ask
// Short:   Ask one question and print the answer
//
// Examples:
//   farmhand ask "Best crop for black soil?"
//   farmhand ask --json "When to sow wheat?"

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/model"
)

// renderMarkdown renders content for the terminal at width, returning it
// unchanged when glamour is unavailable.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// askResult is the outcome of one question.
type askResult struct {
	Answer   string
	Location *model.LocationData
	Duration time.Duration
	Err      error
}

// ask sends question as a single-turn conversation. When stream is non-nil
// the reply is written to it as it arrives.
func ask(ctx context.Context, a *app, question string, stream io.Writer) askResult {
	a.locator.Request(ctx)

	var observer func(conversation.Snapshot)
	if stream != nil {
		s := &chatSession{out: stream, quiet: true}
		observer = s.observe
	}
	ctrl := a.controller(observer)

	start := time.Now()
	err := ctrl.Submit(ctx, question, conversation.SourceTyped)

	res := askResult{
		Location: a.locator.Current(),
		Duration: time.Since(start),
		Err:      err,
	}
	msgs := ctrl.Messages()
	if idx := model.LastAssistantIndex(msgs); idx >= 0 {
		res.Answer = msgs[idx].Content
	}
	return res
}

// HandleAsk answers one question and exits. On a terminal the reply is
// rendered as markdown once complete; otherwise it streams as plain text.
func HandleAsk(args Args) error {
	question := strings.TrimSpace(args.Query)
	if question == "" {
		return ErrMissingArgument("question", `farmhand ask "When should I sow wheat?"`)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	// One-off questions are not kept in history.
	cfg.Storage.Enabled = false

	a, err := newApp(cfg, "")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	render := !args.JSON && IsStdoutTTY()
	var stream io.Writer
	if !args.JSON && !render {
		stream = os.Stdout
	}

	if render && !args.Quiet {
		fmt.Fprintln(os.Stderr, DimStyle.Render("Thinking..."))
	}

	res := ask(ctx, a, question, stream)

	if args.JSON {
		data := AskData{
			Question:   question,
			Answer:     res.Answer,
			Location:   res.Location,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			data.Error = res.Err.Error()
			resp := NewJSONErrorResponse("ask", res.Err)
			resp.Data = data
			if err := resp.Print(); err != nil {
				return err
			}
			return &reportedError{err: res.Err}
		}
		return NewJSONResponse("ask", data).Print()
	}

	switch {
	case render && res.Answer != "":
		fmt.Print(renderMarkdown(res.Answer, GetTerminalWidth()-4))
	case stream != nil && res.Answer != "":
		fmt.Println()
	}
	if res.Err != nil {
		return res.Err
	}
	if !args.Quiet && res.Location != nil {
		fmt.Fprintln(os.Stderr, DimStyle.Render("📍 "+res.Location.Label()))
	}
	return nil
}
