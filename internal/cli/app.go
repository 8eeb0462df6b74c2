// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared wiring for the interactive commands.

package cli

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/farmhand/internal/cloud"
	"github.com/jeranaias/farmhand/internal/config"
	"github.com/jeranaias/farmhand/internal/conversation"
	"github.com/jeranaias/farmhand/internal/location"
	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/speech"
	"github.com/jeranaias/farmhand/internal/storage"
)

// app holds the collaborators shared by the interactive commands.
type app struct {
	cfg     *config.Config
	client  *cloud.GatewayClient
	locator *location.Locator
	speaker  *speech.Speaker  // nil when speech is disabled
	listener *speech.Listener // nil without a recognizer
	store    *storage.Store   // nil when history is disabled
	session  *storage.Session // nil when history is disabled
	history  []model.Message  // transcript of a resumed conversation
}

// newApp builds the collaborators from cfg. resume selects a stored
// conversation by ID or 1-based list position.
func newApp(cfg *config.Config, resume string) (*app, error) {
	a := &app{
		cfg:      cfg,
		client:   newGatewayClient(cfg),
		locator:  newLocator(cfg),
		speaker:  newSpeaker(cfg),
		listener: newListener(cfg),
	}

	if cfg.Storage.Enabled {
		path, err := cfg.StoragePath()
		if err != nil {
			return nil, err
		}
		store, err := storage.Open(path)
		if err != nil {
			return nil, &CommandError{Command: "history", Action: "open", Reason: "could not open conversation history", Err: err}
		}
		a.store = store
		a.session = storage.NewSession(store, a.locator.Current)
	}

	if resume != "" {
		if a.store == nil {
			return nil, &UsageError{Reason: "--resume needs conversation history enabled"}
		}
		conv, err := findConversation(a.store, resume)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.session = storage.ResumeSession(a.store, conv, a.locator.Current)
		a.history = conv.Messages
		log.Printf("HISTORY_RESUME | id=%s messages=%d", conv.ID, len(conv.Messages))
	}

	return a, nil
}

// controller creates the conversation controller. observer may be nil.
func (a *app) controller(observer func(conversation.Snapshot)) *conversation.Controller {
	opts := []conversation.Option{
		conversation.WithLocation(a.locator.Current),
		conversation.WithHistory(a.history),
	}
	if observer != nil {
		opts = append(opts, conversation.WithObserver(observer))
	}
	if a.session != nil {
		opts = append(opts, conversation.WithRecorder(a.session))
	}
	return conversation.NewController(a.client, opts...)
}

// newChat starts recording into a fresh conversation.
func (a *app) newChat() {
	if a.session != nil {
		a.session.Reset()
	}
}

// Close releases the store.
func (a *app) Close() {
	if a.speaker != nil {
		a.speaker.Stop()
	}
	if a.listener != nil {
		a.listener.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Printf("HISTORY_CLOSE_FAILED | error=%v", err)
		}
	}
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func newGatewayClient(cfg *config.Config) *cloud.GatewayClient {
	return cloud.NewGatewayClient(cfg.Client.ChatURL, cfg.Client.APIKey).
		WithConnectTimeout(time.Duration(cfg.Client.ConnectTimeoutSecs) * time.Second)
}

func newLocator(cfg *config.Config) *location.Locator {
	src := location.StaticSource{
		Enabled:   cfg.Location.Enabled,
		Latitude:  cfg.Location.Latitude,
		Longitude: cfg.Location.Longitude,
	}
	var geo location.Geocoder
	if cfg.Location.GeocoderURL != "" {
		geo = location.NewNominatimClient(cfg.Location.GeocoderURL, cfg.Location.UserAgent)
	}
	return location.NewLocator(src, geo).
		WithTimeout(time.Duration(cfg.Location.TimeoutSecs) * time.Second).
		WithMaxAge(time.Duration(cfg.Location.MaxAgeSecs) * time.Second)
}

func newSpeaker(cfg *config.Config) *speech.Speaker {
	if !cfg.Speech.Enabled {
		return nil
	}
	var tts speech.Synthesizer
	if cfg.Speech.TTSURL != "" {
		tts = speech.NewTTSClient(cfg.Speech.TTSURL, cfg.Speech.APIKey)
	}
	return speech.NewSpeaker(tts, cfg.Speech.Player, cfg.Speech.Fallback)
}

func newListener(cfg *config.Config) *speech.Listener {
	if !cfg.Speech.Enabled || strings.TrimSpace(cfg.Speech.Recognizer) == "" {
		return nil
	}
	return speech.NewListener(cfg.Speech.Recognizer, time.Duration(cfg.Speech.ListenSecs)*time.Second)
}

// findConversation resolves ref as a 1-based list position or an ID.
func findConversation(store *storage.Store, ref string) (*storage.StoredConversation, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 {
			return nil, &UsageError{Reason: fmt.Sprintf("conversation number must be 1 or more, got %d", n)}
		}
		return store.LoadByIndex(n - 1)
	}
	return store.Load(ref)
}
