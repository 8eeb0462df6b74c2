// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based chat command for farmhand.
//
// CLI: Slash commands mirror the TUI key bindings
// USABILITY: Input history survives restarts through liner
//
// Command: chat
// Short:   Chat in plain text, one line per question
//
// Examples:
//   farmhand chat                     Start a new conversation
//   farmhand chat --resume 1          Continue the most recent conversation
//   farmhand chat --no-history        Do not store this conversation
//
// Interactive Commands (during chat):
//   /quick N            Send quick action N
//   /speak              Read the last answer aloud
//   /voice              Ask by voice
//   /location           Detect location again
//   /new                Start a new conversation
//   /quit, /q           Leave
//   Ctrl+C              Stop the current answer

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/farmhand/internal/config"
	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/location"
	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/speech"
	"github.com/jeranaias/farmhand/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and input history for the chat REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from the data
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	c.LoadHistory()
	return c
}

// LoadHistory reads the history file if it exists.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput prompts for one line. Non-blank input is added to history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	if err := util.AtomicWriteFile(c.historyFile, buf.Bytes(), 0600); err != nil {
		log.Printf("CHAT_HISTORY_SAVE_FAILED | error=%v", err)
	}
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession prints a conversation as plain text and runs slash commands.
type chatSession struct {
	ctrl    *conversation.Controller
	locator *location.Locator
	speaker  *speech.Speaker
	listener *speech.Listener
	onNew    func()
	out      io.Writer
	quiet    bool

	// turnContext scopes one turn; nil means context.WithCancel.
	turnContext func() (context.Context, context.CancelFunc)

	// Streaming progress of the current turn. Only touched from the
	// goroutine that calls submit, which is also where the observer runs.
	base  int
	shown int
}

// observe prints the text appended to the current turn's assistant reply.
func (s *chatSession) observe(snap conversation.Snapshot) {
	msgs := snap.Messages
	if len(msgs) <= s.base+1 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleAssistant || len(last.Content) <= s.shown {
		return
	}
	if s.shown == 0 && !s.quiet {
		fmt.Fprint(s.out, AssistantStyle.Render("Farmer Assistant:")+" ")
	}
	fmt.Fprint(s.out, last.Content[s.shown:])
	s.shown = len(last.Content)
}

// submit runs one turn and prints the reply as it streams. Turn failures
// are printed, not returned.
func (s *chatSession) submit(ctx context.Context, text string, src conversation.InputSource) {
	s.base = len(s.ctrl.Messages())
	s.shown = 0

	err := s.ctrl.Submit(ctx, text, src)
	if s.shown > 0 {
		fmt.Fprintln(s.out)
	}

	var turnErr *conversation.TurnError
	switch {
	case err == nil, errors.Is(err, conversation.ErrEmptyInput):
	case errors.As(err, &turnErr):
		fmt.Fprintln(s.out, ErrorStyle.Render(turnErr.Error()))
	default:
		fmt.Fprintln(s.out, ErrorStyle.Render(err.Error()))
	}
}

// handleLine processes one input line. It reports whether the REPL should
// exit.
func (s *chatSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.submit(ctx, line, conversation.SourceTyped)
		return false
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true

	case "help", "?":
		s.printHelp()

	case "quick":
		n, err := strconv.Atoi(arg)
		action, ok := conversation.QuickActionAt(n)
		if err != nil || !ok {
			fmt.Fprintf(s.out, "Usage: /quick N (1-%d)\n", len(conversation.QuickActions))
			s.printQuickActions()
			return false
		}
		if !s.quiet {
			fmt.Fprintln(s.out, UserStyle.Render("You:")+" "+action.Query)
		}
		s.submit(ctx, action.Query, conversation.SourceQuickAction)

	case "speak":
		s.speakLast()

	case "voice":
		s.voice(ctx)

	case "location":
		st := s.locator.Request(ctx)
		fmt.Fprintln(s.out, "📍 "+st.Banner())

	case "new":
		s.ctrl.Reset()
		if s.onNew != nil {
			s.onNew()
		}
		fmt.Fprintln(s.out, DimStyle.Render("Started a new conversation."))

	default:
		fmt.Fprintf(s.out, "Unknown command /%s. Type /help for commands.\n", name)
	}
	return false
}

// speakLast starts reading the last reply in the background. Asking while
// it is being read stops it.
func (s *chatSession) speakLast() {
	if s.speaker == nil {
		fmt.Fprintln(s.out, "Speech is disabled.")
		return
	}
	msgs := s.ctrl.Messages()
	idx := model.LastAssistantIndex(msgs)
	if idx < 0 {
		fmt.Fprintln(s.out, "Nothing to read yet.")
		return
	}
	go func() {
		if err := s.speaker.Speak(context.Background(), msgs[idx].Content, idx); err != nil {
			log.Printf("SPEECH_FAILED | error=%v", err)
			fmt.Fprintln(s.out, WarningStyle.Render(speech.UserMessage(err)))
		}
	}()
}

// voice records one question and submits its transcript. Cancelling ctx
// ends the recording; the turn then runs under a fresh turn context.
func (s *chatSession) voice(ctx context.Context) {
	if s.listener == nil {
		fmt.Fprintln(s.out, WarningStyle.Render(speech.VoiceMessage(speech.ErrVoiceDisabled)))
		return
	}
	fmt.Fprintln(s.out, DimStyle.Render("🎤 Listening... press Ctrl+C to stop."))

	stopOnCancel := context.AfterFunc(ctx, s.listener.Stop)
	text, err := s.listener.Listen(context.Background())
	stopOnCancel()
	if err != nil {
		fmt.Fprintln(s.out, WarningStyle.Render(speech.VoiceMessage(err)))
		return
	}

	if !s.quiet {
		fmt.Fprintln(s.out, UserStyle.Render("You:")+" "+text)
	}
	turnCtx, cancel := s.newTurnContext()
	defer cancel()
	s.submit(turnCtx, text, conversation.SourceVoice)
}

func (s *chatSession) newTurnContext() (context.Context, context.CancelFunc) {
	if s.turnContext != nil {
		return s.turnContext()
	}
	return context.WithCancel(context.Background())
}

func (s *chatSession) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  /quick N    send quick action N")
	fmt.Fprintln(s.out, "  /speak      read the last answer aloud (again to stop)")
	fmt.Fprintln(s.out, "  /voice      ask by voice (Ctrl+C ends the recording)")
	fmt.Fprintln(s.out, "  /location   detect location again")
	fmt.Fprintln(s.out, "  /new        start a new conversation")
	fmt.Fprintln(s.out, "  /quit       leave")
	fmt.Fprintln(s.out, "Press Ctrl+C while an answer streams to stop it.")
}

func (s *chatSession) printQuickActions() {
	for i, a := range conversation.QuickActions {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, a.Label)
	}
}

func (s *chatSession) printWelcome(locBanner string) {
	fmt.Fprintln(s.out, TitleStyle.Render("🌾 Farmer Assistant"))
	fmt.Fprintln(s.out, DimStyle.Render("📍 "+locBanner))
	if len(s.ctrl.Messages()) == 0 {
		fmt.Fprintln(s.out, "Quick actions (/quick N):")
		s.printQuickActions()
	} else {
		fmt.Fprintf(s.out, "Resumed a conversation with %d messages.\n", len(s.ctrl.Messages()))
	}
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands."))
	fmt.Fprintln(s.out)
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleChat runs the line-based chat REPL.
func HandleChat(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, args.Resume)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	// Ctrl+C while a reply streams stops the turn, not the program.
	turnContext := func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(ctx, os.Interrupt)
	}

	s := &chatSession{
		locator:     a.locator,
		speaker:     a.speaker,
		listener:    a.listener,
		onNew:       a.newChat,
		out:         os.Stdout,
		quiet:       args.Quiet,
		turnContext: turnContext,
	}
	s.ctrl = a.controller(s.observe)

	st := a.locator.Request(ctx)
	if !args.Quiet {
		s.printWelcome(st.Banner())
	}

	input := NewChatCLI()
	defer input.Close()

	for {
		line, err := input.ReadInput("you> ")
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D and end of piped input all leave.
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read input: %w", err)
			}
			break
		}

		turnCtx, stop := turnContext()
		quit := s.handleLine(turnCtx, line)
		stop()
		if quit {
			break
		}
	}

	if a.session != nil && a.session.ID() != "" && !args.Quiet {
		fmt.Fprintln(os.Stdout, DimStyle.Render("Saved as "+a.session.ID()))
	}
	return nil
}
