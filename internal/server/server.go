// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/farmhand/internal/cloud"
	"github.com/jeranaias/farmhand/internal/model"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultListen is the default bind address.
	DefaultListen = "127.0.0.1:8787"

	// DefaultPath is the chat endpoint path of the hosted function.
	DefaultPath = "/functions/v1/farmer-chat"

	// MaxRequestBodySize bounds the posted transcript (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 200

	// relayBufferSize is the read size when copying the upstream stream.
	relayBufferSize = 4096
)

// Version is reported by /health; main sets it from the build.
var Version = "1.0.0"

// Client-facing error messages.
const (
	errNotConfigured = "AI service not configured"
	errRateLimited   = "Rate limit exceeded. Please try again in a moment."
	errCapacity      = "Service temporarily unavailable."
	errInvalidBody   = "Invalid request format"
	errGeneric       = "An error occurred"
)

// ============================================================================
// TYPES
// ============================================================================

// Upstream opens the provider stream. *cloud.UpstreamClient implements it.
type Upstream interface {
	OpenStream(ctx context.Context, messages []model.Message) (io.ReadCloser, error)
	IsConfigured() bool
	Model() string
}

// Settings are the reloadable server options.
type Settings struct {
	Listen    string
	Path      string
	ClientKey string
	// RateLimitPerMinute is per client IP; 0 disables limiting.
	RateLimitPerMinute int
}

func (s Settings) withDefaults() Settings {
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	if s.Path == "" {
		s.Path = DefaultPath
	}
	return s
}

// ChatRequest is the body accepted on the chat path.
type ChatRequest struct {
	Messages []model.Message    `json:"messages"`
	Location *model.LocationData `json:"location"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	UpstreamStatus string `json:"upstream_status"`
	Model          string `json:"model"`
	Requests       int64  `json:"requests"`
	Uptime         string `json:"uptime"`
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the chat gateway.
type Server struct {
	mu       sync.RWMutex
	settings Settings
	upstream Upstream
	limiter  *RateLimiter
	handler  atomic.Value // http.Handler

	server   *http.Server
	started  time.Time
	requests atomic.Int64
}

// New creates a server; upstream may be nil, in which case chat requests
// fail with "AI service not configured".
func New(settings Settings, upstream Upstream) *Server {
	s := &Server{
		settings: settings.withDefaults(),
		upstream: upstream,
		started:  time.Now(),
	}
	s.limiter = NewRateLimiter(s.settings.RateLimitPerMinute)
	s.handler.Store(s.buildRouter(s.settings, s.limiter))
	return s
}

// Settings returns the active settings.
func (s *Server) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Reload swaps settings and the upstream client without dropping listeners.
// A changed listen address only takes effect on restart. Client buckets are
// kept unless the rate limit changed.
func (s *Server) Reload(settings Settings, upstream Upstream) {
	settings = settings.withDefaults()
	s.mu.Lock()
	prev := s.settings
	s.settings = settings
	if upstream != nil {
		s.upstream = upstream
	}
	// RELIABILITY: a reload must not hand every client a fresh burst.
	if s.limiter.Limit() != settings.RateLimitPerMinute {
		s.limiter = NewRateLimiter(settings.RateLimitPerMinute)
	}
	limiter := s.limiter
	// Build under the lock so concurrent reloads store routers in order.
	s.handler.Store(s.buildRouter(settings, limiter))
	s.mu.Unlock()

	if prev.Listen != settings.Listen {
		log.Printf("SERVER_RELOAD | listen change ignored until restart old=%s new=%s", prev.Listen, settings.Listen)
	}
	log.Printf("SERVER_RELOAD | path=%s rate_limit=%d auth=%t", settings.Path, settings.RateLimitPerMinute, settings.ClientKey != "")
}

// ServeHTTP dispatches to the current router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.Load().(http.Handler).ServeHTTP(w, r)
}

func (s *Server) buildRouter(settings Settings, limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware(log.Default()))
	r.Use(CORSMiddleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(settings.ClientKey))
		r.Use(RateLimitMiddleware(limiter))
		r.Post(settings.Path, s.handleChat)
	})

	return r
}

func (s *Server) currentUpstream() Upstream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upstream
}

// ============================================================================
// HANDLERS
// ============================================================================

// validateMessages accepts only user and assistant roles from clients.
//
// SECURITY: a client-supplied system message would replace the prompt.
func validateMessages(messages []model.Message) error {
	if len(messages) > MaxMessageCount {
		return fmt.Errorf("too many messages: %d exceeds maximum of %d", len(messages), MaxMessageCount)
	}
	for i, msg := range messages {
		if !msg.Role.IsValid() {
			return fmt.Errorf("invalid role '%s' at message %d: must be user or assistant", msg.Role, i)
		}
	}
	return nil
}

// handleChat handles POST <path>.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	id := RequestID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		log.Printf("CHAT_BAD_REQUEST | id=%s error=%v", id, err)
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upstream := s.currentUpstream()
	if upstream == nil || !upstream.IsConfigured() {
		log.Printf("CHAT_NOT_CONFIGURED | id=%s", id)
		writeError(w, http.StatusInternalServerError, errNotConfigured)
		return
	}

	messages := make([]model.Message, 0, len(req.Messages)+1)
	messages = append(messages, model.NewSystemMessage(BuildSystemPrompt(req.Location)))
	messages = append(messages, req.Messages...)

	log.Printf("CHAT_UPSTREAM | id=%s messages=%d location=%t model=%s", id, len(messages), req.Location != nil, upstream.Model())

	body, err := upstream.OpenStream(r.Context(), messages)
	if err != nil {
		s.writeUpstreamError(w, id, err)
		return
	}
	defer body.Close()

	s.relay(w, r, body)
}

func (s *Server) writeUpstreamError(w http.ResponseWriter, id string, err error) {
	log.Printf("CHAT_UPSTREAM_FAILED | id=%s error=%v", id, err)

	var upErr *cloud.UpstreamError
	switch {
	case errors.Is(err, cloud.ErrUpstreamNotConfigured):
		writeError(w, http.StatusInternalServerError, errNotConfigured)
	case errors.Is(err, cloud.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, errRateLimited)
	case errors.Is(err, cloud.ErrCapacityExhausted):
		writeError(w, http.StatusPaymentRequired, errCapacity)
	case errors.As(err, &upErr):
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI gateway error: %d", upErr.Status))
	default:
		writeError(w, http.StatusInternalServerError, errGeneric)
	}
}

// relay copies the upstream event stream, flushing after every read.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, body io.Reader) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	buf := make([]byte, relayBufferSize)
	var total int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				log.Printf("CHAT_RELAY_CLIENT_GONE | id=%s bytes=%d error=%v", RequestID(r.Context()), total, werr)
				return
			}
			total += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && r.Context().Err() == nil {
				log.Printf("CHAT_RELAY_FAILED | id=%s bytes=%d error=%v", RequestID(r.Context()), total, err)
			}
			return
		}
	}
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:         "ok",
		Version:        Version,
		UpstreamStatus: "not_configured",
		Requests:       s.requests.Load(),
		Uptime:         time.Since(s.started).Round(time.Second).String(),
	}
	if up := s.currentUpstream(); up != nil && up.IsConfigured() {
		health.UpstreamStatus = "configured"
		health.Model = up.Model()
	} else {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	addr := s.Settings().Listen
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// STREAMING: no WriteTimeout, responses are long-lived streams.
	}
	srv := s.server
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s path=%s version=%s", addr, s.Settings().Path, Version)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | requests=%d", s.requests.Load())
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the {"error": "..."} body clients expect.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
