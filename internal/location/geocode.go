// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultGeocoderURL is the public Nominatim instance.
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent is required by the Nominatim usage policy.
	DefaultUserAgent = "FarmerAssistant/1.0"

	maxGeocodeBody = 256 * 1024
)

// Places are the administrative areas of a position. Any field may be empty.
type Places struct {
	Region   string
	District string
	State    string
	Country  string
}

// Geocoder names a position.
type Geocoder interface {
	Reverse(ctx context.Context, c Coordinates) (Places, error)
}

// NominatimClient reverse-geocodes through the Nominatim API.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimClient creates a client; empty arguments use the defaults.
func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultGeocoderURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &NominatimClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type nominatimResponse struct {
	Address map[string]string `json:"address"`
}

// Reverse implements Geocoder.
func (c *NominatimClient) Reverse(ctx context.Context, pos Coordinates) (Places, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Places{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Places{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Places{}, fmt.Errorf("reverse geocode: HTTP %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGeocodeBody)).Decode(&body); err != nil {
		return Places{}, fmt.Errorf("reverse geocode: %w", err)
	}

	a := body.Address
	return Places{
		Region:   firstOf(a, "county", "suburb", "village", "town"),
		District: firstOf(a, "state_district", "city", "municipality"),
		State:    a["state"],
		Country:  a["country"],
	}, nil
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
