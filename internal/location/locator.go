// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package location

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/farmhand/internal/model"
)

const (
	// DefaultTimeout bounds one position lookup.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAge is how long a resolved location is reused.
	DefaultMaxAge = 5 * time.Minute
)

// State is what the location banner renders.
type State struct {
	Location         *model.LocationData
	Loading          bool
	Err              error
	PermissionDenied bool
}

// Banner returns the one-line banner text.
func (s State) Banner() string {
	switch {
	case s.Loading:
		return "Detecting your location..."
	case s.PermissionDenied:
		return "Location access denied"
	case s.Err != nil:
		return Message(s.Err)
	case s.Location != nil:
		return s.Location.Label()
	default:
		return "Enable location for personalized advice"
	}
}

// Locator resolves and caches the user's location.
type Locator struct {
	source   PositionSource
	geocoder Geocoder
	timeout  time.Duration
	maxAge   time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	state     State
	fetchedAt time.Time
}

// NewLocator creates a locator. geocoder may be nil, in which case only
// coordinates are reported.
func NewLocator(source PositionSource, geocoder Geocoder) *Locator {
	return &Locator{
		source:   source,
		geocoder: geocoder,
		timeout:  DefaultTimeout,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
}

// WithTimeout sets the position lookup timeout.
func (l *Locator) WithTimeout(d time.Duration) *Locator {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// WithMaxAge sets how long a resolved location is reused.
func (l *Locator) WithMaxAge(d time.Duration) *Locator {
	if d >= 0 {
		l.maxAge = d
	}
	return l
}

// State returns the current state.
func (l *Locator) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Current returns the resolved location, or nil. It matches
// conversation.LocationFunc.
func (l *Locator) Current() *model.LocationData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Location.Clone()
}

// Request resolves the location, reusing a result younger than the max age.
// Geocoding failures keep the coordinates and are only logged.
func (l *Locator) Request(ctx context.Context) State {
	l.mu.Lock()
	if l.state.Location != nil && l.now().Sub(l.fetchedAt) < l.maxAge {
		st := l.state
		l.mu.Unlock()
		return st
	}
	l.state.Loading = true
	l.state.Err = nil
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	next := l.resolve(ctx)

	l.mu.Lock()
	l.state = next
	if next.Location != nil {
		l.fetchedAt = l.now()
	}
	l.mu.Unlock()
	return next
}

func (l *Locator) resolve(ctx context.Context) State {
	pos, err := l.source.Position(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		log.Printf("LOCATION_FAILED | error=%v", err)
		return State{Err: err, PermissionDenied: errors.Is(err, ErrPermissionDenied)}
	}

	loc := &model.LocationData{Latitude: pos.Latitude, Longitude: pos.Longitude}
	if l.geocoder != nil {
		places, err := l.geocoder.Reverse(ctx, pos)
		if err != nil {
			log.Printf("LOCATION_GEOCODE_FAILED | error=%v", err)
		} else {
			loc.Region = places.Region
			loc.District = places.District
			loc.State = places.State
			loc.Country = places.Country
		}
	}
	log.Printf("LOCATION_RESOLVED | label=%q", loc.Label())
	return State{Location: loc}
}
