// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"header", "## Sowing\nStart in June", "Sowing Start in June"},
		{"bold and italic", "Use **neem oil** and *water*", "Use neem oil and water"},
		{"code", "Mix `2 ml` per litre", "Mix 2 ml per litre"},
		{"link", "See [PM-KISAN](https://pmkisan.gov.in) now", "See PM-KISAN now"},
		{"bullets", "- step one\n- step two", "step one step two"},
		{"paragraphs", "First.\n\nSecond.", "First.. Second."},
		{"only markdown", "## \n\n", "."},
		{"empty", "   ", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanForSpeech(tc.in); got != tc.want {
				t.Errorf("CleanForSpeech(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTTSClient_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "pub", r.Header.Get("apikey"))
		require.Equal(t, "Bearer pub", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "hello", body["text"])
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "ID3fake")
	}))
	defer server.Close()

	audio, err := NewTTSClient(server.URL, "pub").Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "ID3fake", string(audio))
}

func TestTTSClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewTTSClient(server.URL, "").Synthesize(context.Background(), "x")
	require.EqualError(t, err, "TTS request failed: 500")

	_, err = NewTTSClient("", "").Synthesize(context.Background(), "x")
	require.ErrorIs(t, err, ErrTTSNotConfigured)
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	block chan struct{}
}

func (r *recordingRunner) run(ctx context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.err
}

func TestSpeaker_PlaysRemoteAudio(t *testing.T) {
	rr := &recordingRunner{}
	var played []byte
	sp := NewSpeaker(fakeTTS{audio: []byte("mp3")}, "mpv --really-quiet {file}", "espeak").
		WithRunner(func(ctx context.Context, name string, args ...string) error {
			data, err := os.ReadFile(args[len(args)-1])
			require.NoError(t, err)
			played = data
			return rr.run(ctx, name, args...)
		})

	require.NoError(t, sp.Speak(context.Background(), "**Water** daily", 3))
	require.Equal(t, "mp3", string(played))
	require.Len(t, rr.calls, 1)
	require.Equal(t, "mpv", rr.calls[0][0])
	require.Equal(t, "--really-quiet", rr.calls[0][1])
	require.False(t, sp.Status().Speaking)
}

func TestSpeaker_FallsBack(t *testing.T) {
	rr := &recordingRunner{}
	var statuses []Status
	sp := NewSpeaker(fakeTTS{err: errors.New("TTS request failed: 500")}, "mpv", "espeak -s 140").
		WithRunner(rr.run).
		OnChange(func(s Status) { statuses = append(statuses, s) })

	require.NoError(t, sp.Speak(context.Background(), "Sow *now*", 1))
	require.Equal(t, [][]string{{"espeak", "-s", "140", "Sow now"}}, rr.calls)
	require.True(t, statuses[0].Speaking)

	fellBack := false
	for _, s := range statuses {
		fellBack = fellBack || s.Fallback
	}
	require.True(t, fellBack)
	require.Equal(t, Status{}, statuses[len(statuses)-1])
}

func TestSpeaker_Failures(t *testing.T) {
	sp := NewSpeaker(fakeTTS{err: errors.New("down")}, "mpv", "")
	err := sp.Speak(context.Background(), "text", 1)
	require.ErrorIs(t, err, ErrSpeechFailed)
	require.Equal(t, "Could not generate speech. Please try again.", UserMessage(err))

	err = sp.Speak(context.Background(), "## ", 2)
	require.ErrorIs(t, err, ErrNothingToSpeak)
	require.Equal(t, "No text to speak.", UserMessage(err))
}

func TestSpeaker_ToggleStops(t *testing.T) {
	rr := &recordingRunner{block: make(chan struct{})}
	started := make(chan struct{}, 1)
	sp := NewSpeaker(nil, "", "say").
		WithRunner(rr.run).
		OnChange(func(s Status) {
			if s.Speaking {
				select {
				case started <- struct{}{}:
				default:
				}
			}
		})

	done := make(chan error, 1)
	go func() { done <- sp.Speak(context.Background(), "long answer", 7) }()
	<-started

	require.True(t, sp.Status().Speaking)
	require.Equal(t, 7, sp.Status().MessageID)

	// Same message again toggles playback off.
	require.NoError(t, sp.Speak(context.Background(), "long answer", 7))
	require.NoError(t, <-done)
	require.False(t, sp.Status().Speaking)
}

func TestSpeaker_BlankCommandsNeverRun(t *testing.T) {
	rr := &recordingRunner{}
	sp := NewSpeaker(fakeTTS{audio: []byte("mp3")}, "   ", "\t").WithRunner(rr.run)

	err := sp.Speak(context.Background(), "Irrigate at dusk", 1)
	require.ErrorIs(t, err, ErrSpeechFailed)
	require.Empty(t, rr.calls)
}

func TestExpand(t *testing.T) {
	name, args, err := expand("ffplay -nodisp {file}", FilePlaceholder, "/tmp/a.mp3")
	require.NoError(t, err)
	require.Equal(t, "ffplay", name)
	require.Equal(t, []string{"-nodisp", "/tmp/a.mp3"}, args)

	name, args, err = expand("afplay", FilePlaceholder, "/tmp/b.mp3")
	require.NoError(t, err)
	require.Equal(t, "afplay", name)
	require.Equal(t, []string{"/tmp/b.mp3"}, args)

	_, _, err = expand("  \t ", TextPlaceholder, "rm -rf")
	require.ErrorIs(t, err, ErrNoCommand)
}

func TestListener_Transcribes(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		err     error
		want    string
		wantErr error
		message string
	}{
		{"success", "  When should I sow paddy?\n", nil, "When should I sow paddy?", nil, ""},
		{"blank", " \n\t", nil, "", ErrNoSpeech, "No speech detected. Please try again or type your message."},
		{"failure", "partial", errors.New("exit status 1"), "", ErrTranscribeFailed,
			"Could not transcribe audio. Please try again or type your message."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			l := NewListener("whisper-cli --lang hi", time.Second).
				WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
					got = append([]string{name}, args...)
					return []byte(tc.out), tc.err
				})

			text, err := l.Listen(context.Background())
			require.Equal(t, []string{"whisper-cli", "--lang", "hi"}, got)
			require.Equal(t, tc.want, text)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.message, VoiceMessage(err))
			require.False(t, l.Listening())
		})
	}
}

func TestListener_Disabled(t *testing.T) {
	called := false
	l := NewListener("  ", 0).WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		called = true
		return nil, nil
	})
	_, err := l.Listen(context.Background())
	require.ErrorIs(t, err, ErrVoiceDisabled)
	require.False(t, called)
	require.Contains(t, VoiceMessage(err), "speech.recognizer")
}

// blockingRecognizer stands in for a recognizer that records until it is
// interrupted and then prints what it heard with a signal exit status.
func blockingRecognizer(started chan<- struct{}, heard string) CaptureRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		started <- struct{}{}
		<-ctx.Done()
		return []byte(heard), errors.New("signal: interrupt")
	}
}

func TestListener_StopKeepsTranscript(t *testing.T) {
	started := make(chan struct{}, 1)
	l := NewListener("rec", time.Minute).WithRunner(blockingRecognizer(started, "price of onion"))

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := l.Listen(context.Background())
		done <- result{text, err}
	}()
	<-started
	require.True(t, l.Listening())

	_, err := l.Listen(context.Background())
	require.ErrorIs(t, err, ErrAlreadyListening)

	l.Stop()
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, "price of onion", res.text)
	require.False(t, l.Listening())
}

func TestListener_TimeoutKeepsTranscript(t *testing.T) {
	started := make(chan struct{}, 1)
	l := NewListener("rec", 20*time.Millisecond).WithRunner(blockingRecognizer(started, "weather tomorrow"))

	text, err := l.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, "weather tomorrow", text)
}

func TestListener_CallerCancelDiscards(t *testing.T) {
	started := make(chan struct{}, 1)
	l := NewListener("rec", time.Minute).WithRunner(blockingRecognizer(started, "ignored"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Listen(ctx)
		done <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
