// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package location

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

type countingSource struct {
	calls int
	pos   Coordinates
	err   error
}

func (s *countingSource) Position(ctx context.Context) (Coordinates, error) {
	s.calls++
	return s.pos, s.err
}

type stubGeocoder struct {
	places Places
	err    error
}

func (g stubGeocoder) Reverse(ctx context.Context, c Coordinates) (Places, error) {
	return g.places, g.err
}

func TestStaticSource(t *testing.T) {
	ctx := context.Background()

	_, err := StaticSource{Enabled: false, Latitude: ptr(1), Longitude: ptr(2)}.Position(ctx)
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = StaticSource{Enabled: true, Latitude: ptr(1)}.Position(ctx)
	require.ErrorIs(t, err, ErrPositionUnavailable)

	_, err = StaticSource{Enabled: true, Latitude: ptr(95), Longitude: ptr(0)}.Position(ctx)
	require.ErrorIs(t, err, ErrPositionUnavailable)

	c, err := StaticSource{Enabled: true, Latitude: ptr(21.1), Longitude: ptr(79.05)}.Position(ctx)
	require.NoError(t, err)
	require.Equal(t, Coordinates{Latitude: 21.1, Longitude: 79.05}, c)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrPermissionDenied, "Location permission denied"},
		{ErrPositionUnavailable, "Location information unavailable"},
		{ErrTimeout, "Location request timed out"},
		{errors.New("gps exploded"), "Unable to get your location"},
	}
	for _, tc := range tests {
		if got := Message(tc.err); got != tc.want {
			t.Errorf("Message(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNominatimClient_Reverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reverse", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "json", q.Get("format"))
		require.Equal(t, "10", q.Get("zoom"))
		require.Equal(t, "1", q.Get("addressdetails"))
		require.Equal(t, "26.85", q.Get("lat"))
		require.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		io.WriteString(w, `{"address":{"suburb":"Gomti Nagar","city":"Lucknow","state":"Uttar Pradesh","country":"India"}}`)
	}))
	defer server.Close()

	places, err := NewNominatimClient(server.URL, "").Reverse(context.Background(), Coordinates{Latitude: 26.85, Longitude: 80.95})
	require.NoError(t, err)
	require.Equal(t, Places{Region: "Gomti Nagar", District: "Lucknow", State: "Uttar Pradesh", Country: "India"}, places)
}

func TestNominatimClient_FieldPrecedence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"address":{"county":"Karnal","village":"Kunjpura","state_district":"Karnal District","municipality":"M"}}`)
	}))
	defer server.Close()

	places, err := NewNominatimClient(server.URL, "ua").Reverse(context.Background(), Coordinates{})
	require.NoError(t, err)
	require.Equal(t, "Karnal", places.Region)
	require.Equal(t, "Karnal District", places.District)
}

func TestNominatimClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewNominatimClient(server.URL, "").Reverse(context.Background(), Coordinates{})
	require.Error(t, err)
}

func TestLocator_GeocodeFailureKeepsCoordinates(t *testing.T) {
	src := &countingSource{pos: Coordinates{Latitude: 10, Longitude: 76}}
	loc := NewLocator(src, stubGeocoder{err: errors.New("offline")})

	st := loc.Request(context.Background())
	require.NoError(t, st.Err)
	require.NotNil(t, st.Location)
	require.Empty(t, st.Location.State)
	require.Equal(t, "10.00°, 76.00°", st.Banner())
}

func TestLocator_CachesWithinMaxAge(t *testing.T) {
	src := &countingSource{pos: Coordinates{Latitude: 1, Longitude: 2}}
	now := time.Unix(1000, 0)
	loc := NewLocator(src, stubGeocoder{places: Places{State: "Kerala"}})
	loc.now = func() time.Time { return now }

	loc.Request(context.Background())
	loc.Request(context.Background())
	require.Equal(t, 1, src.calls)

	now = now.Add(DefaultMaxAge + time.Second)
	st := loc.Request(context.Background())
	require.Equal(t, 2, src.calls)
	require.Equal(t, "Kerala", st.Banner())
	require.Equal(t, "Kerala", loc.Current().State)
}

func TestLocator_Denied(t *testing.T) {
	loc := NewLocator(StaticSource{Enabled: false}, nil)
	st := loc.Request(context.Background())

	require.True(t, st.PermissionDenied)
	require.Nil(t, loc.Current())
	require.Equal(t, "Location access denied", st.Banner())
}

func TestState_Banner(t *testing.T) {
	require.Equal(t, "Detecting your location...", State{Loading: true}.Banner())
	require.Equal(t, "Enable location for personalized advice", State{}.Banner())
	require.Equal(t, "Location request timed out", State{Err: ErrTimeout}.Banner())
}
