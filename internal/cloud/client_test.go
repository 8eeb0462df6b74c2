// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/farmhand/internal/model"
)

// =============================================================================
// GATEWAY CLIENT TESTS
// =============================================================================

func TestGatewayClient_StreamSendsContract(t *testing.T) {
	var got map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer pub-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n")
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL, "pub-key")
	body, err := client.Stream(context.Background(), ChatRequest{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "data: [DONE]\n", string(data))

	require.JSONEq(t, `[{"role":"user","content":"hi"}]`, string(got["messages"]))
	require.Equal(t, "null", string(got["location"]))
}

func TestGatewayClient_StreamSendsLocation(t *testing.T) {
	var req ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		io.WriteString(w, "\n")
	}))
	defer server.Close()

	loc := &model.LocationData{Latitude: 19.07, Longitude: 72.87, State: "Maharashtra"}
	body, err := NewGatewayClient(server.URL, "").Stream(context.Background(), ChatRequest{Location: loc})
	require.NoError(t, err)
	body.Close()

	require.NotNil(t, req.Location)
	require.Equal(t, "Maharashtra", req.Location.State)
	require.Empty(t, req.Messages)
}

func TestGatewayClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		message string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"Rate limit exceeded. Please try again in a moment."}`, ErrRateLimited, "Rate limit exceeded. Please try again in a moment."},
		{"capacity", http.StatusPaymentRequired, `{"error":"Service temporarily unavailable."}`, ErrCapacityExhausted, "Service temporarily unavailable."},
		{"server error", http.StatusInternalServerError, `{"error":"AI gateway error: 503"}`, ErrTransportFailure, "AI gateway error: 503"},
		{"plain body", http.StatusBadGateway, "bad gateway\n", ErrTransportFailure, "bad gateway"},
		{"bad request", http.StatusBadRequest, ``, ErrTransportFailure, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			body, err := NewGatewayClient(server.URL, "k").Stream(context.Background(), ChatRequest{})
			require.Nil(t, body)
			require.ErrorIs(t, err, tc.want)

			var gwErr *GatewayError
			require.True(t, errors.As(err, &gwErr))
			require.Equal(t, tc.status, gwErr.Status)
			require.Equal(t, tc.message, gwErr.Message)
		})
	}
}

func TestGatewayClient_RetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewGatewayClient(server.URL, "").Stream(context.Background(), ChatRequest{})
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	require.Equal(t, 7*time.Second, gwErr.RetryAfter)
}

func TestGatewayClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewGatewayClient(url, "").Stream(context.Background(), ChatRequest{})
	require.ErrorIs(t, err, ErrTransportFailure)
	require.NotErrorIs(t, err, ErrRateLimited)
}

func TestGatewayClient_NotConfigured(t *testing.T) {
	client := NewGatewayClient("  ", "k")
	require.False(t, client.IsConfigured())

	_, err := client.Stream(context.Background(), ChatRequest{})
	require.ErrorIs(t, err, ErrNotConfigured)
	require.ErrorIs(t, err, ErrTransportFailure)
}

func TestGatewayClient_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGatewayClient(server.URL, "").Stream(ctx, ChatRequest{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"soon", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tc := range tests {
		if got := parseRetryAfter(tc.in); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// =============================================================================
// UPSTREAM CLIENT TESTS
// =============================================================================

func TestUpstreamClient_OpenStream(t *testing.T) {
	var got CompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer up-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, "data: [DONE]\n")
	}))
	defer server.Close()

	client := NewUpstreamClient(server.URL+"/", "up-key")
	body, err := client.OpenStream(context.Background(), []model.Message{
		model.NewSystemMessage("persona"),
		model.NewUserMessage("hi"),
	})
	require.NoError(t, err)
	body.Close()

	require.Equal(t, DefaultModel, got.Model)
	require.True(t, got.Stream)
	require.Equal(t, 1024, got.MaxTokens)
	require.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	require.Equal(t, model.RoleSystem, got.Messages[0].Role)
}

func TestUpstreamClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		io.WriteString(w, "out of credits")
	}))
	defer server.Close()

	_, err := NewUpstreamClient(server.URL, "k").OpenStream(context.Background(), nil)
	require.ErrorIs(t, err, ErrCapacityExhausted)
	require.NotErrorIs(t, err, ErrRateLimited)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, "out of credits", upErr.Body)

	_, err = NewUpstreamClient(server.URL, "").OpenStream(context.Background(), nil)
	require.ErrorIs(t, err, ErrUpstreamNotConfigured)
}
