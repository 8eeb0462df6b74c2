// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Placeholders substituted in player and fallback commands.
const (
	FilePlaceholder = "{file}"
	TextPlaceholder = "{text}"
)

var (
	// ErrNothingToSpeak is returned when the cleaned text is empty.
	ErrNothingToSpeak = errors.New("no text to speak")

	// ErrSpeechFailed is returned when neither the remote nor the fallback
	// path produced speech.
	ErrSpeechFailed = errors.New("could not generate speech")
)

// UserMessage returns the text shown to the user for a Speak error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNothingToSpeak):
		return "No text to speak."
	default:
		return "Could not generate speech. Please try again."
	}
}

// Runner executes an external command until it exits or ctx ends.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Status describes current playback.
type Status struct {
	Speaking  bool
	MessageID int
	Fallback  bool
}

// Speaker plays one message at a time.
type Speaker struct {
	tts      Synthesizer
	player   string
	fallback string
	run      Runner
	onChange func(Status)

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	gen    int
}

// NewSpeaker creates a speaker. player is a command line with an optional
// {file} placeholder (the audio path is appended when absent); fallback is a
// command line with an optional {text} placeholder. Either may be empty.
func NewSpeaker(tts Synthesizer, player, fallback string) *Speaker {
	return &Speaker{tts: tts, player: player, fallback: fallback, run: execRunner}
}

// WithRunner replaces command execution.
func (s *Speaker) WithRunner(r Runner) *Speaker {
	if r != nil {
		s.run = r
	}
	return s
}

// OnChange registers fn to receive status changes.
func (s *Speaker) OnChange(fn func(Status)) *Speaker {
	s.onChange = fn
	return s
}

// Status returns the current playback status.
func (s *Speaker) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stop ends playback, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	was := s.status.Speaking
	s.stopLocked()
	s.status = Status{}
	s.mu.Unlock()
	if was {
		s.notify(Status{})
	}
}

func (s *Speaker) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

// Speak reads text aloud and blocks until playback ends or is stopped.
// Calling Speak for the message that is already playing stops it instead.
func (s *Speaker) Speak(ctx context.Context, text string, messageID int) error {
	s.mu.Lock()
	if s.status.Speaking && s.status.MessageID == messageID {
		s.stopLocked()
		s.status = Status{}
		s.mu.Unlock()
		s.notify(Status{})
		return nil
	}
	s.stopLocked()

	clean := CleanForSpeech(text)
	if clean == "" {
		s.status = Status{}
		s.mu.Unlock()
		return ErrNothingToSpeak
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	gen := s.gen
	s.status = Status{Speaking: true, MessageID: messageID}
	st := s.status
	s.mu.Unlock()
	s.notify(st)

	err := s.play(ctx, clean, gen)
	cancel()

	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.status = Status{}
		s.cancel = nil
	}
	s.mu.Unlock()
	if current {
		s.notify(Status{})
	}

	if ctx.Err() != nil {
		// Stopped or superseded.
		return nil
	}
	return err
}

func (s *Speaker) play(ctx context.Context, text string, gen int) error {
	err := s.playRemote(ctx, text)
	if err == nil || ctx.Err() != nil {
		return nil
	}
	log.Printf("SPEECH_REMOTE_FAILED | error=%v", err)

	if strings.TrimSpace(s.fallback) == "" {
		return ErrSpeechFailed
	}

	s.mu.Lock()
	if s.gen == gen {
		s.status.Fallback = true
	}
	st := s.status
	s.mu.Unlock()
	s.notify(st)

	name, args, err := expand(s.fallback, TextPlaceholder, text)
	if err != nil {
		log.Printf("SPEECH_FALLBACK_FAILED | error=%v", err)
		return ErrSpeechFailed
	}
	if err := s.run(ctx, name, args...); err != nil && ctx.Err() == nil {
		log.Printf("SPEECH_FALLBACK_FAILED | command=%s error=%v", name, err)
		return ErrSpeechFailed
	}
	return nil
}

func (s *Speaker) playRemote(ctx context.Context, text string) error {
	if s.tts == nil || strings.TrimSpace(s.player) == "" {
		return errors.New("remote speech unavailable")
	}
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "farmhand-speech-*.mp3")
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	name, args, err := expand(s.player, FilePlaceholder, path)
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	if err := s.run(ctx, name, args...); err != nil {
		return fmt.Errorf("could not play audio: %w", err)
	}
	return nil
}

func (s *Speaker) notify(st Status) {
	if s.onChange != nil {
		s.onChange(st)
	}
}

// ErrNoCommand is returned for a command line without a program name.
var ErrNoCommand = errors.New("empty command line")

// expand splits a command line and substitutes value for placeholder,
// appending it as the last argument when the placeholder is absent.
func expand(cmdline, placeholder, value string) (string, []string, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return "", nil, ErrNoCommand
	}
	found := false
	for i, f := range fields {
		if strings.Contains(f, placeholder) {
			fields[i] = strings.ReplaceAll(f, placeholder, value)
			found = true
		}
	}
	if !found {
		fields = append(fields, value)
	}
	return fields[0], fields[1:], nil
}
