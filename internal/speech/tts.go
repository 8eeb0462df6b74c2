// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxAudioSize caps a synthesized clip (20MB).
const MaxAudioSize = 20 * 1024 * 1024

// ErrTTSNotConfigured indicates no synthesis URL is set.
var ErrTTSNotConfigured = errors.New("text-to-speech URL not configured")

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TTSClient calls the remote text-to-speech function.
type TTSClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewTTSClient creates a client for url. apiKey is sent both as the apikey
// header and as a bearer token.
func NewTTSClient(url, apiKey string) *TTSClient {
	return &TTSClient{
		url:        strings.TrimSpace(url),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// IsConfigured reports whether a URL is set.
func (c *TTSClient) IsConfigured() bool {
	return c.url != ""
}

// Synthesize implements Synthesizer.
func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrTTSNotConfigured
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("TTS request failed: %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, MaxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) > MaxAudioSize {
		return nil, fmt.Errorf("audio exceeded maximum size of %d bytes", MaxAudioSize)
	}
	if len(audio) == 0 {
		return nil, errors.New("TTS returned no audio")
	}
	return audio, nil
}
