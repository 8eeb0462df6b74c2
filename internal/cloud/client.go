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
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/farmhand/internal/model"
)

// Configuration constants for the chat gateway.
const (
	// DefaultConnectTimeout bounds dialing and waiting for response headers.
	// The body itself is only bounded by the request context.
	DefaultConnectTimeout = 30 * time.Second

	// MaxErrorBodySize caps how much of an error response is read.
	MaxErrorBodySize = 64 * 1024

	// UserAgent identifies the client to the gateway.
	UserAgent = "farmhand/1.0"
)

// Error variables for the gateway failure taxonomy.
var (
	// ErrNotConfigured indicates the chat URL is not set.
	ErrNotConfigured = errors.New("chat gateway URL not configured")

	// ErrRateLimited is the gateway's 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrCapacityExhausted is the gateway's 402.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrTransportFailure covers every other non-2xx status, a missing body
	// and network errors.
	ErrTransportFailure = errors.New("transport failure")
)

// =============================================================================
// REQUEST / ERROR TYPES
// =============================================================================

// ChatRequest is the body posted to the chat endpoint. Location is sent as
// null when unknown.
type ChatRequest struct {
	Messages []model.Message    `json:"messages"`
	Location *model.LocationData `json:"location"`
}

// GatewayError is a classified chat request failure.
type GatewayError struct {
	// Status is the HTTP status, or 0 when no response arrived.
	Status int

	// Message is the gateway's "error" field, or the raw body.
	Message string

	// RetryAfter is parsed from the Retry-After header when present.
	RetryAfter time.Duration

	// Err is the network error for transport failures.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("gateway request failed: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("gateway error (HTTP %d): %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("gateway error (HTTP %d)", e.Status)
	}
}

// Kind returns the sentinel the error is classified as.
func (e *GatewayError) Kind() error {
	switch e.Status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrCapacityExhausted
	default:
		return ErrTransportFailure
	}
}

// Unwrap exposes both the classification and the network cause.
func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind(), e.Err}
	}
	return []error{e.Kind()}
}

// =============================================================================
// GATEWAY CLIENT
// =============================================================================

// GatewayClient talks to the farmer-chat endpoint.
type GatewayClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewGatewayClient creates a client for chatURL authenticated with apiKey.
func NewGatewayClient(chatURL, apiKey string) *GatewayClient {
	return &GatewayClient{
		url:        strings.TrimSpace(chatURL),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: newStreamingClient(DefaultConnectTimeout),
	}
}

// WithConnectTimeout replaces the dial and response-header timeout.
func (c *GatewayClient) WithConnectTimeout(d time.Duration) *GatewayClient {
	if d > 0 {
		c.httpClient = newStreamingClient(d)
	}
	return c
}

// WithHTTPClient sets a custom HTTP client.
func (c *GatewayClient) WithHTTPClient(hc *http.Client) *GatewayClient {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// URL returns the configured endpoint.
func (c *GatewayClient) URL() string {
	return c.url
}

// IsConfigured reports whether a chat URL is set.
func (c *GatewayClient) IsConfigured() bool {
	return c.url != ""
}

// Stream posts req and returns the event-stream body on a 2xx response.
// The caller must close the body. Failures are *GatewayError values that
// match ErrRateLimited, ErrCapacityExhausted or ErrTransportFailure.
func (c *GatewayClient) Stream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if !c.IsConfigured() {
		return nil, &GatewayError{Err: ErrNotConfigured}
	}
	if req.Messages == nil {
		req.Messages = []model.Message{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.setHeaders(httpReq)

	log.Printf("GATEWAY_REQUEST | messages=%d location=%t", len(req.Messages), req.Location != nil)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("GATEWAY_FAILED | error=%v", err)
		return nil, &GatewayError{Err: err}
	}
	log.Printf("GATEWAY_RESPONSE | status=%d duration=%v", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &GatewayError{Status: resp.StatusCode, Message: "response has no body"}
	}
	return resp.Body, nil
}

func (c *GatewayClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", UserAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// errorFromResponse reads the gateway's {"error": "..."} body.
func errorFromResponse(resp *http.Response) *GatewayError {
	gwErr := &GatewayError{
		Status:     resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
	if err != nil || len(data) == 0 {
		return gwErr
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		gwErr.Message = payload.Error
	} else {
		gwErr.Message = strings.TrimSpace(string(data))
	}
	return gwErr
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// newStreamingClient has no overall timeout; the body lives as long as the
// request context.
func newStreamingClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: connectTimeout,
		},
	}
}
