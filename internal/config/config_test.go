// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// isolateHome points the config directory at a temp dir and clears
// environment overrides.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, key := range []string{
		"FARMHAND_CHAT_URL", "FARMHAND_API_KEY", "FARMHAND_LATITUDE", "FARMHAND_LONGITUDE",
		"FARMHAND_TTS_URL", "FARMHAND_LISTEN", "FARMHAND_UPSTREAM_URL", "FARMHAND_MODEL",
		"LOVABLE_API_KEY",
	} {
		t.Setenv(key, "")
	}
	return home
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Server.Path != "/functions/v1/farmer-chat" {
		t.Errorf("unexpected default path %q", cfg.Server.Path)
	}
	if cfg.Server.Model != "google/gemini-3-flash-preview" {
		t.Errorf("unexpected default model %q", cfg.Server.Model)
	}
	if cfg.Server.MaxTokens != 1024 || cfg.Server.Temperature != 0.7 {
		t.Errorf("unexpected sampling defaults: %d %g", cfg.Server.MaxTokens, cfg.Server.Temperature)
	}
	if cfg.Client.ChatURL != "http://127.0.0.1:8787/functions/v1/farmer-chat" {
		t.Errorf("client should default to the local gateway, got %q", cfg.Client.ChatURL)
	}
	if !cfg.Location.Enabled || cfg.Location.Latitude != nil {
		t.Errorf("location should be enabled without coordinates")
	}
}

func TestConfig_Validate(t *testing.T) {
	lat := 95.0
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad chat url", func(c *Config) { c.Client.ChatURL = "ftp://x" }, "client.chat_url"},
		{"timeout", func(c *Config) { c.Client.ConnectTimeoutSecs = 0 }, "client.connect_timeout_secs"},
		{"lat without lon", func(c *Config) { v := 10.0; c.Location.Latitude = &v }, "location.latitude"},
		{"lat range", func(c *Config) { lon := 0.0; c.Location.Latitude = &lat; c.Location.Longitude = &lon }, "location.latitude"},
		{"listen", func(c *Config) { c.Server.Listen = "localhost" }, "server.listen"},
		{"path", func(c *Config) { c.Server.Path = "farmer-chat" }, "server.path"},
		{"upstream", func(c *Config) { c.Server.UpstreamURL = "" }, "server.upstream_url"},
		{"temperature", func(c *Config) { c.Server.Temperature = 3 }, "server.temperature"},
		{"rate limit", func(c *Config) { c.Server.RateLimitPerMinute = -1 }, "server.rate_limit_per_minute"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"blank player", func(c *Config) { c.Speech.Player = "   " }, "speech.player"},
		{"blank fallback", func(c *Config) { c.Speech.Fallback = "\t" }, "speech.fallback"},
		{"blank recognizer", func(c *Config) { c.Speech.Recognizer = " " }, "speech.recognizer"},
		{"listen secs", func(c *Config) { c.Speech.ListenSecs = 0 }, "speech.listen_secs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidateErrors, got %v", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestConfig_Validate_EmptyCommandsAllowed(t *testing.T) {
	cfg := Default()
	cfg.Speech.Player = ""
	cfg.Speech.Fallback = ""
	cfg.Speech.Recognizer = ""
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_EmptyChatURLAllowed(t *testing.T) {
	cfg := Default()
	cfg.Client.ChatURL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty chat url should be allowed: %v", err)
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolateHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_TOMLKeepsUnsetDefaults(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, ".farmhand", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(`
[client]
chat_url = "https://example.supabase.co/functions/v1/farmer-chat"
api_key = "anon-key"

[location]
latitude = 18.52
longitude = 73.85
`), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://example.supabase.co/functions/v1/farmer-chat", cfg.Client.ChatURL)
	require.Equal(t, "anon-key", cfg.Client.APIKey)
	require.NotNil(t, cfg.Location.Latitude)
	require.InDelta(t, 18.52, *cfg.Location.Latitude, 1e-9)
	require.True(t, cfg.Location.Enabled, "unset keys keep defaults")
	require.Equal(t, 30, cfg.Client.ConnectTimeoutSecs)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if filepath.Separator == '/' {
		require.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions tightened on load")
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, ".farmhand", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"model": "google/gemini-2.5-flash"}}`), 0600))

	active, err := ActivePath()
	require.NoError(t, err)
	require.Equal(t, path, active)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "google/gemini-2.5-flash", cfg.Server.Model)
}

func TestLoad_InvalidFile(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, ".farmhand", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0600))

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "ui.theme")
}

func TestApplyEnvOverrides(t *testing.T) {
	isolateHome(t)
	t.Setenv("FARMHAND_CHAT_URL", "https://gw.example/chat")
	t.Setenv("FARMHAND_LATITUDE", "26.85")
	t.Setenv("FARMHAND_LONGITUDE", "not-a-number")
	t.Setenv("LOVABLE_API_KEY", "secret")
	t.Setenv("FARMHAND_MODEL", "google/gemini-2.5-pro")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	require.Equal(t, "https://gw.example/chat", cfg.Client.ChatURL)
	require.NotNil(t, cfg.Location.Latitude)
	require.Nil(t, cfg.Location.Longitude, "unparseable coordinate is ignored")
	require.Equal(t, "secret", cfg.Server.UpstreamKey)
	require.Equal(t, "google/gemini-2.5-pro", cfg.Server.Model)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	lat, lon := 30.9, 75.85
	cfg.Location.Latitude, cfg.Location.Longitude = &lat, &lon
	cfg.Server.ClientKey = "k"

	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "# farmhand configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Server, loaded.Server)
	require.InDelta(t, lon, *loaded.Location.Longitude, 1e-9)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("ui.theme", "light"))
	v, err := cfg.Get("ui.theme")
	require.NoError(t, err)
	require.Equal(t, "light", v)

	require.NoError(t, cfg.Set("server.max_tokens", "2048"))
	require.Equal(t, 2048, cfg.Server.MaxTokens)

	require.NoError(t, cfg.Set("speech.tts_url", "https://x.example/tts"))
	require.Equal(t, "https://x.example/tts", cfg.Speech.TTSURL)

	require.NoError(t, cfg.Set("location.latitude", "12.97"))
	require.NotNil(t, cfg.Location.Latitude)
	v, err = cfg.Get("location.latitude")
	require.NoError(t, err)
	require.Equal(t, 12.97, v)

	_, err = cfg.Get("server.nope")
	require.Error(t, err)
	require.Error(t, cfg.Set("server.max_tokens", "many"))
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("key %s does not resolve: %v", key, err)
		}
	}
}

func TestConfig_StringRedacts(t *testing.T) {
	cfg := Default()
	cfg.Client.APIKey = "anon-key-123"
	cfg.Server.UpstreamKey = "lovable-key-456"

	s := cfg.String()
	require.NotContains(t, s, "anon-key-123")
	require.NotContains(t, s, "lovable-key-456")
	require.Contains(t, s, "[REDACTED]")
	require.Equal(t, "anon-key-123", cfg.Client.APIKey, "original untouched")
}

func TestConfig_Clone(t *testing.T) {
	lat := 1.0
	cfg := Default()
	cfg.Location.Latitude = &lat

	clone := cfg.Clone()
	*clone.Location.Latitude = 2.0
	require.Equal(t, 1.0, *cfg.Location.Latitude)
}

func TestStoragePath(t *testing.T) {
	home := isolateHome(t)
	cfg := Default()

	p, err := cfg.StoragePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".farmhand", "history.db"), p)

	cfg.Storage.Path = "/var/lib/farmhand/h.db"
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	require.Equal(t, "/var/lib/farmhand/h.db", p)
}

// =============================================================================
// GLOBAL
// =============================================================================

func TestConfig_ConcurrentAccess(t *testing.T) {
	isolateHome(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_ReloadGlobal(t *testing.T) {
	home := isolateHome(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	require.Equal(t, "auto", Global().UI.Theme)

	path := filepath.Join(home, ".farmhand", "config.toml")
	cfg := Default()
	cfg.UI.Theme = "dark"
	require.NoError(t, SaveTOML(cfg, path))

	require.NoError(t, ReloadGlobal())
	require.Equal(t, "dark", Global().UI.Theme)
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
			if err == nil {
				changes <- cfg
			}
		})
	}()

	updated := Default()
	updated.Server.RateLimitPerMinute = 5

	// The watcher registers asynchronously; keep saving until it reports.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-changes:
			require.Equal(t, 5, cfg.Server.RateLimitPerMinute)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			require.NoError(t, SaveTOML(updated, path))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_ReportsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failures := make(chan error, 8)
	go Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err != nil {
			failures <- err
		}
	})

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-failures:
			require.Contains(t, err.Error(), "server.path")
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("[server]\npath = \"nope\"\n"), 0600))
		case <-deadline:
			t.Fatal("no failure observed")
		}
	}
}
