// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package location

import (
	"context"
	"errors"
	"fmt"
)

// Position failures.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("location information unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Validate checks the coordinate ranges.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %.4f out of range [-90, 90]", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %.4f out of range [-180, 180]", c.Longitude)
	}
	return nil
}

// PositionSource supplies the current coordinates.
type PositionSource interface {
	Position(ctx context.Context) (Coordinates, error)
}

// StaticSource returns coordinates from configuration. A disabled source
// behaves like a denied permission; missing coordinates are unavailable.
type StaticSource struct {
	Enabled   bool
	Latitude  *float64
	Longitude *float64
}

// Position implements PositionSource.
func (s StaticSource) Position(ctx context.Context) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, ErrTimeout
	}
	if !s.Enabled {
		return Coordinates{}, ErrPermissionDenied
	}
	if s.Latitude == nil || s.Longitude == nil {
		return Coordinates{}, ErrPositionUnavailable
	}
	c := Coordinates{Latitude: *s.Latitude, Longitude: *s.Longitude}
	if err := c.Validate(); err != nil {
		return Coordinates{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	return c, nil
}

// Message returns the banner text for a position error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Location permission denied"
	case errors.Is(err, ErrPositionUnavailable):
		return "Location information unavailable"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Location request timed out"
	default:
		return "Unable to get your location"
	}
}
