// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// LocationData is the user's position as attached to a chat request.
// It is immutable once built; the pipeline never mutates it.
type LocationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Region    string  `json:"region,omitempty"`
	District  string  `json:"district,omitempty"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// Places returns the non-empty administrative areas, most local first.
func (l *LocationData) Places() []string {
	if l == nil {
		return nil
	}
	return nonEmpty(l.Region, l.District, l.State, l.Country)
}

// Label returns the short banner text for the location: region, district and
// state when known, otherwise the rounded coordinates.
func (l *LocationData) Label() string {
	if l == nil {
		return ""
	}
	if parts := nonEmpty(l.Region, l.District, l.State); len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%.2f°, %.2f°", l.Latitude, l.Longitude)
}

// Clone returns a copy of the location, or nil.
func (l *LocationData) Clone() *LocationData {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
