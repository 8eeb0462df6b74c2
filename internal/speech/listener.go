// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// listener.go - voice input through an external recognizer command.
//
// The recognizer records one utterance and prints its transcript on stdout.
// Stopping a recording interrupts the recognizer and keeps what it printed.

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
	"time"
	"unicode/utf8"
)

// DefaultListenTimeout caps one recording.
const DefaultListenTimeout = 30 * time.Second

// recognizerGrace is how long an interrupted recognizer may take to flush
// its transcript before it is killed.
const recognizerGrace = 3 * time.Second

var (
	// ErrVoiceDisabled is returned when no recognizer is configured.
	ErrVoiceDisabled = errors.New("voice input is not configured")

	// ErrAlreadyListening is returned when a recording is in progress.
	ErrAlreadyListening = errors.New("already listening")

	// ErrNoSpeech is returned when the recognizer heard nothing.
	ErrNoSpeech = errors.New("no speech detected")

	// ErrTranscribeFailed is returned when the recognizer fails.
	ErrTranscribeFailed = errors.New("could not transcribe audio")
)

// VoiceMessage returns the text shown to the user for a Listen error.
func VoiceMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrVoiceDisabled):
		return "Voice input is not configured. Set speech.recognizer to a command that prints a transcript."
	case errors.Is(err, ErrAlreadyListening):
		return "Already listening."
	case errors.Is(err, ErrNoSpeech):
		return "No speech detected. Please try again or type your message."
	default:
		return "Could not transcribe audio. Please try again or type your message."
	}
}

// CaptureRunner executes a command and returns its standard output.
type CaptureRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCapture(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// CANCELLATION: interrupt rather than kill so the recognizer can print
	// what it heard; WaitDelay bounds a recognizer that ignores it.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = recognizerGrace
	return cmd.Output()
}

// Listener runs one recording at a time.
type Listener struct {
	recognizer string
	timeout    time.Duration
	run        CaptureRunner

	mu   sync.Mutex
	stop context.CancelFunc
}

// NewListener creates a listener for the recognizer command line. A timeout
// of zero or less uses DefaultListenTimeout.
func NewListener(recognizer string, timeout time.Duration) *Listener {
	if timeout <= 0 {
		timeout = DefaultListenTimeout
	}
	return &Listener{recognizer: recognizer, timeout: timeout, run: execCapture}
}

// WithRunner replaces command execution.
func (l *Listener) WithRunner(r CaptureRunner) *Listener {
	if r != nil {
		l.run = r
	}
	return l
}

// Listening reports whether a recording is in progress.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

// Stop ends the current recording; Listen returns what was heard so far.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		l.stop()
	}
}

// Listen records one utterance and returns its trimmed transcript. It
// blocks until the recognizer exits, Stop is called or the timeout passes.
// Cancelling ctx discards the recording.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	fields := strings.Fields(l.recognizer)
	if len(fields) == 0 {
		return "", ErrVoiceDisabled
	}

	l.mu.Lock()
	if l.stop != nil {
		l.mu.Unlock()
		return "", ErrAlreadyListening
	}
	recCtx, stop := context.WithTimeout(ctx, l.timeout)
	l.stop = stop
	l.mu.Unlock()

	start := time.Now()
	out, err := l.run(recCtx, fields[0], fields[1:]...)
	interrupted := recCtx.Err() != nil
	stop()

	l.mu.Lock()
	l.stop = nil
	l.mu.Unlock()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	// An interrupted recognizer exits with a signal status; its output
	// still counts.
	if err != nil && !interrupted {
		log.Printf("VOICE_FAILED | command=%s error=%v", fields[0], err)
		return "", fmt.Errorf("%w: %v", ErrTranscribeFailed, err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", ErrNoSpeech
	}
	log.Printf("VOICE_TRANSCRIBED | runes=%d duration=%s stopped=%t",
		utf8.RuneCountInString(text), time.Since(start).Round(time.Millisecond), interrupted)
	return text, nil
}
