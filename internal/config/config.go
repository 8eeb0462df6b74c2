// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/farmhand/internal/cloud"
	"github.com/jeranaias/farmhand/internal/location"
	"github.com/jeranaias/farmhand/internal/server"
	"github.com/jeranaias/farmhand/internal/speech"
	"github.com/jeranaias/farmhand/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete farmhand configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Client   ClientConfig   `toml:"client" json:"client"`
	Location LocationConfig `toml:"location" json:"location"`
	Speech   SpeechConfig   `toml:"speech" json:"speech"`
	Server   ServerConfig   `toml:"server" json:"server"`
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	UI       UIConfig       `toml:"ui" json:"ui"`
}

// ClientConfig points the front-ends at a chat gateway.
type ClientConfig struct {
	// ChatURL is the full chat endpoint URL.
	ChatURL string `toml:"chat_url" json:"chat_url"`
	// APIKey is sent as a bearer token (the publishable key for hosted gateways).
	APIKey string `toml:"api_key" json:"api_key"`
	// ConnectTimeoutSecs bounds connecting and waiting for response headers.
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
}

// LocationConfig configures the position source and reverse geocoder.
type LocationConfig struct {
	// Enabled set to false behaves like a denied location permission.
	Enabled   bool     `toml:"enabled" json:"enabled"`
	Latitude  *float64 `toml:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude *float64 `toml:"longitude,omitempty" json:"longitude,omitempty"`
	// GeocoderURL is a Nominatim-compatible base URL. Empty disables naming.
	GeocoderURL string `toml:"geocoder_url" json:"geocoder_url"`
	UserAgent   string `toml:"user_agent" json:"user_agent"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
	MaxAgeSecs  int    `toml:"max_age_secs" json:"max_age_secs"`
}

// SpeechConfig configures read-aloud.
type SpeechConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// TTSURL is the remote text-to-speech endpoint. Empty uses the fallback only.
	TTSURL string `toml:"tts_url" json:"tts_url"`
	APIKey string `toml:"api_key" json:"api_key"`
	// Player plays an audio file; {file} is replaced with its path.
	Player string `toml:"player" json:"player"`
	// Fallback speaks text locally; {text} is replaced with the text.
	Fallback string `toml:"fallback" json:"fallback"`
	// Recognizer records one utterance and prints its transcript on stdout.
	// Empty disables voice input.
	Recognizer string `toml:"recognizer" json:"recognizer"`
	// ListenSecs caps a recording; the recognizer is interrupted after it.
	ListenSecs int `toml:"listen_secs" json:"listen_secs"`
}

// ServerConfig configures `farmhand serve`.
type ServerConfig struct {
	Listen      string  `toml:"listen" json:"listen"`
	Path        string  `toml:"path" json:"path"`
	UpstreamURL string  `toml:"upstream_url" json:"upstream_url"`
	UpstreamKey string  `toml:"upstream_key" json:"upstream_key"`
	Model       string  `toml:"model" json:"model"`
	MaxTokens   int     `toml:"max_tokens" json:"max_tokens"`
	Temperature float64 `toml:"temperature" json:"temperature"`
	// ClientKey, when set, is required as a bearer token on the chat path.
	ClientKey string `toml:"client_key" json:"client_key"`
	// RateLimitPerMinute is per client IP; 0 disables limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// StorageConfig configures conversation history.
type StorageConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "auto", "dark", "light"
	Theme string `toml:"theme" json:"theme"`
	// ShowHints shows the key hints under the input
	ShowHints bool `toml:"show_hints" json:"show_hints"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values. The client talks to a
// locally running `farmhand serve`.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Client: ClientConfig{
			ChatURL:            "http://" + server.DefaultListen + server.DefaultPath,
			ConnectTimeoutSecs: int(cloud.DefaultConnectTimeout / time.Second),
		},

		Location: LocationConfig{
			Enabled:     true,
			GeocoderURL: location.DefaultGeocoderURL,
			UserAgent:   location.DefaultUserAgent,
			TimeoutSecs: int(location.DefaultTimeout / time.Second),
			MaxAgeSecs:  int(location.DefaultMaxAge / time.Second),
		},

		Speech: SpeechConfig{
			Enabled:  true,
			Player:   "ffplay -nodisp -autoexit -loglevel quiet {file}",
			Fallback:   "espeak {text}",
			ListenSecs: int(speech.DefaultListenTimeout / time.Second),
		},

		Server: ServerConfig{
			Listen:             server.DefaultListen,
			Path:               server.DefaultPath,
			UpstreamURL:        cloud.DefaultUpstreamURL,
			Model:              cloud.DefaultModel,
			MaxTokens:          cloud.DefaultMaxTokens,
			Temperature:        cloud.DefaultTemperature,
			RateLimitPerMinute: 30,
		},

		Storage: StorageConfig{
			Enabled: true,
		},

		UI: UIConfig{
			Theme:     "auto",
			ShowHints: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the farmhand configuration directory path.
func ConfigDir() (string, error) {
	dir, err := util.DataDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return dir, nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the config file Load would read: the TOML file, the
// JSON file if only that exists, or the TOML path when neither exists.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// StoragePath returns the history database path, defaulting to
// ~/.farmhand/history.db.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return util.ExpandHome(c.Storage.Path), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ensureSecurePermissions tightens config files to 0600; they hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ActivePath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Keys absent from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults restores defaults for values a file set to empty or zero.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Client
	if cfg.Client.ConnectTimeoutSecs <= 0 {
		cfg.Client.ConnectTimeoutSecs = defaults.Client.ConnectTimeoutSecs
	}

	// Location
	if cfg.Location.UserAgent == "" {
		cfg.Location.UserAgent = defaults.Location.UserAgent
	}
	if cfg.Location.TimeoutSecs <= 0 {
		cfg.Location.TimeoutSecs = defaults.Location.TimeoutSecs
	}
	if cfg.Location.MaxAgeSecs < 0 {
		cfg.Location.MaxAgeSecs = defaults.Location.MaxAgeSecs
	}

	// Speech
	if cfg.Speech.ListenSecs <= 0 {
		cfg.Speech.ListenSecs = defaults.Speech.ListenSecs
	}

	// Server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = defaults.Server.Path
	}
	if cfg.Server.UpstreamURL == "" {
		cfg.Server.UpstreamURL = defaults.Server.UpstreamURL
	}
	if cfg.Server.Model == "" {
		cfg.Server.Model = defaults.Server.Model
	}
	if cfg.Server.MaxTokens <= 0 {
		cfg.Server.MaxTokens = defaults.Server.MaxTokens
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# farmhand configuration file\n")
	buf.WriteString("# Generated by farmhand - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	checkURL := func(field, value string, required bool) {
		if value == "" {
			if required {
				errs = append(errs, ValidationError{Field: field, Message: "must not be empty"})
			}
			return
		}
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid URL '%s', must be an http(s) URL", value),
			})
		}
	}

	// Client
	checkURL("client.chat_url", c.Client.ChatURL, false)
	if c.Client.ConnectTimeoutSecs < 1 || c.Client.ConnectTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "client.connect_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Client.ConnectTimeoutSecs),
		})
	}

	// Location
	if (c.Location.Latitude == nil) != (c.Location.Longitude == nil) {
		errs = append(errs, ValidationError{
			Field:   "location.latitude",
			Message: "latitude and longitude must be set together",
		})
	}
	if c.Location.Latitude != nil && (*c.Location.Latitude < -90 || *c.Location.Latitude > 90) {
		errs = append(errs, ValidationError{
			Field:   "location.latitude",
			Message: fmt.Sprintf("must be between -90 and 90, got %g", *c.Location.Latitude),
		})
	}
	if c.Location.Longitude != nil && (*c.Location.Longitude < -180 || *c.Location.Longitude > 180) {
		errs = append(errs, ValidationError{
			Field:   "location.longitude",
			Message: fmt.Sprintf("must be between -180 and 180, got %g", *c.Location.Longitude),
		})
	}
	checkURL("location.geocoder_url", c.Location.GeocoderURL, false)
	if c.Location.TimeoutSecs < 1 || c.Location.TimeoutSecs > 120 {
		errs = append(errs, ValidationError{
			Field:   "location.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 120, got %d", c.Location.TimeoutSecs),
		})
	}

	// Speech
	checkURL("speech.tts_url", c.Speech.TTSURL, false)
	// A command line that is only whitespace would run its argument as the
	// program.
	for _, cmd := range []struct{ field, value string }{
		{"speech.player", c.Speech.Player},
		{"speech.fallback", c.Speech.Fallback},
		{"speech.recognizer", c.Speech.Recognizer},
	} {
		if cmd.value != "" && strings.TrimSpace(cmd.value) == "" {
			errs = append(errs, ValidationError{
				Field:   cmd.field,
				Message: "must be a command line or empty",
			})
		}
	}
	if c.Speech.ListenSecs < 1 || c.Speech.ListenSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "speech.listen_secs",
			Message: fmt.Sprintf("must be between 1 and 300, got %d", c.Speech.ListenSecs),
		})
	}

	// Server
	if err := validListenAddr(c.Server.Listen); err != nil {
		errs = append(errs, ValidationError{
			Field:   "server.listen",
			Message: fmt.Sprintf("invalid address '%s': %v", c.Server.Listen, err),
		})
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, ValidationError{
			Field:   "server.path",
			Message: fmt.Sprintf("must start with '/', got '%s'", c.Server.Path),
		})
	}
	checkURL("server.upstream_url", c.Server.UpstreamURL, true)
	if c.Server.MaxTokens < 1 || c.Server.MaxTokens > 32768 {
		errs = append(errs, ValidationError{
			Field:   "server.max_tokens",
			Message: fmt.Sprintf("must be between 1 and 32768, got %d", c.Server.MaxTokens),
		})
	}
	if c.Server.Temperature < 0 || c.Server.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "server.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", c.Server.Temperature),
		})
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_per_minute",
			Message: "must not be negative",
		})
	}

	// UI
	validThemes := map[string]bool{"auto": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validListenAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - FARMHAND_CHAT_URL: overrides client.chat_url
//   - FARMHAND_API_KEY: overrides client.api_key
//   - FARMHAND_LATITUDE, FARMHAND_LONGITUDE: override location coordinates
//   - FARMHAND_TTS_URL: overrides speech.tts_url
//   - FARMHAND_RECOGNIZER: overrides speech.recognizer
//   - FARMHAND_LISTEN: overrides server.listen
//   - FARMHAND_UPSTREAM_URL: overrides server.upstream_url
//   - FARMHAND_MODEL: overrides server.model
//   - LOVABLE_API_KEY: overrides server.upstream_key
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FARMHAND_CHAT_URL"); v != "" {
		c.Client.ChatURL = v
	}
	if v := os.Getenv("FARMHAND_API_KEY"); v != "" {
		c.Client.APIKey = v
	}

	// Unparseable coordinates are ignored.
	if v := os.Getenv("FARMHAND_LATITUDE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Location.Latitude = &f
		}
	}
	if v := os.Getenv("FARMHAND_LONGITUDE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Location.Longitude = &f
		}
	}

	if v := os.Getenv("FARMHAND_TTS_URL"); v != "" {
		c.Speech.TTSURL = v
	}
	if v := os.Getenv("FARMHAND_RECOGNIZER"); v != "" {
		c.Speech.Recognizer = v
	}
	if v := os.Getenv("FARMHAND_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("FARMHAND_UPSTREAM_URL"); v != "" {
		c.Server.UpstreamURL = v
	}
	if v := os.Getenv("FARMHAND_MODEL"); v != "" {
		c.Server.Model = v
	}
	if v := os.Getenv("LOVABLE_API_KEY"); v != "" {
		c.Server.UpstreamKey = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, nil
		}
		return field.Elem().Interface(), nil
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field
// equivalent. Matching is case-insensitive, so "tts_url" finds TTSURL.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"client.chat_url",
		"client.api_key",
		"client.connect_timeout_secs",
		"location.enabled",
		"location.latitude",
		"location.longitude",
		"location.geocoder_url",
		"location.user_agent",
		"location.timeout_secs",
		"location.max_age_secs",
		"speech.enabled",
		"speech.tts_url",
		"speech.api_key",
		"speech.player",
		"speech.fallback",
		"speech.recognizer",
		"speech.listen_secs",
		"server.listen",
		"server.path",
		"server.upstream_url",
		"server.upstream_key",
		"server.model",
		"server.max_tokens",
		"server.temperature",
		"server.client_key",
		"server.rate_limit_per_minute",
		"storage.enabled",
		"storage.path",
		"ui.theme",
		"ui.show_hints",
	}
}

// secretKeys are redacted by String.
var secretKeys = map[string]bool{
	"client.api_key":      true,
	"speech.api_key":      true,
	"server.upstream_key": true,
	"server.client_key":   true,
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	return secretKeys[key]
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Location.Latitude != nil {
		lat := *c.Location.Latitude
		clone.Location.Latitude = &lat
	}
	if c.Location.Longitude != nil {
		lon := *c.Location.Longitude
		clone.Location.Longitude = &lon
	}
	return &clone
}

// String returns the config as JSON with credentials redacted.
func (c *Config) String() string {
	safe := c.Clone()
	for key := range secretKeys {
		if v, _ := safe.Get(key); v != "" {
			_ = safe.Set(key, "[REDACTED]")
		}
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access unless SetGlobal ran first. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.RLock()
		set := globalConfig != nil
		globalConfigMu.RUnlock()
		if set {
			return
		}
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
