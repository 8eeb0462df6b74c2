// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/farmhand/internal/model"
)

// Defaults for the language-model provider.
const (
	DefaultUpstreamURL  = "https://ai.gateway.lovable.dev/v1"
	DefaultModel        = "google/gemini-3-flash-preview"
	DefaultMaxTokens    = 1024
	DefaultTemperature  = 0.7
	completionsEndpoint = "/chat/completions"
)

// ErrUpstreamNotConfigured indicates the provider key is missing.
var ErrUpstreamNotConfigured = errors.New("upstream API key not configured")

// CompletionRequest is the OpenAI-compatible streaming request body.
type CompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []model.Message `json:"messages"`
	Stream      bool            `json:"stream"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// UpstreamError is a non-2xx provider response.
type UpstreamError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream error (HTTP %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("upstream error (HTTP %d)", e.Status)
}

// Is matches the gateway sentinels for 429 and 402.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrCapacityExhausted:
		return e.Status == http.StatusPaymentRequired
	}
	return false
}

// UpstreamClient opens streaming chat completions with the provider.
type UpstreamClient struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewUpstreamClient creates a provider client with default model settings.
func NewUpstreamClient(baseURL, apiKey string) *UpstreamClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultUpstreamURL
	}
	return &UpstreamClient{
		baseURL:     strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		apiKey:      strings.TrimSpace(apiKey),
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		httpClient:  newStreamingClient(DefaultConnectTimeout),
	}
}

// WithModel sets the model identifier.
func (c *UpstreamClient) WithModel(m string) *UpstreamClient {
	if m != "" {
		c.model = m
	}
	return c
}

// WithSampling sets max_tokens and temperature.
func (c *UpstreamClient) WithSampling(maxTokens int, temperature float64) *UpstreamClient {
	if maxTokens > 0 {
		c.maxTokens = maxTokens
	}
	c.temperature = temperature
	return c
}

// WithHTTPClient sets a custom HTTP client.
func (c *UpstreamClient) WithHTTPClient(hc *http.Client) *UpstreamClient {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// IsConfigured reports whether a provider key is set.
func (c *UpstreamClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the model identifier sent upstream.
func (c *UpstreamClient) Model() string {
	return c.model
}

// OpenStream starts a streaming completion and returns the response body.
// Non-2xx responses are returned as *UpstreamError.
func (c *UpstreamClient) OpenStream(ctx context.Context, messages []model.Message) (io.ReadCloser, error) {
	if !c.IsConfigured() {
		return nil, ErrUpstreamNotConfigured
	}

	body, err := json.Marshal(CompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Stream:      true,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	log.Printf("UPSTREAM_RESPONSE | model=%s status=%d duration=%v", c.model, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp.Body, nil
}
