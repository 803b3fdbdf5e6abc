package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/airquality/internal/observability"
)

func testGoogle(reverse func(geocoder.Location) ([]geocoder.Address, error)) (*GoogleGeocoder, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return &GoogleGeocoder{
		reverse: reverse,
		metrics: m,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, m
}

func TestGoogleGeocoder_ReverseGeocode(t *testing.T) {
	g, m := testGoogle(func(loc geocoder.Location) ([]geocoder.Address, error) {
		assert.Equal(t, 37.5665, loc.Latitude)
		assert.Equal(t, 126.978, loc.Longitude)
		return []geocoder.Address{
			{Street: "Sejong-daero", City: "Seoul", Country: "South Korea", FormattedAddress: "Sejong-daero, Jung-gu, Seoul, South Korea"},
			{City: "ignored"},
		}, nil
	})

	addr, err := g.ReverseGeocode(context.Background(), 37.5665, 126.978)
	require.NoError(t, err)

	assert.Equal(t, "Sejong-daero", addr.Street)
	assert.Equal(t, "Seoul", addr.City)
	assert.Equal(t, "South Korea", addr.Country)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("success")))
}

func TestGoogleGeocoder_Errors(t *testing.T) {
	g, _ := testGoogle(func(geocoder.Location) ([]geocoder.Address, error) {
		return nil, errors.New("REQUEST_DENIED")
	})
	_, err := g.ReverseGeocode(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrGeocodingFailed)

	g, m := testGoogle(func(geocoder.Location) ([]geocoder.Address, error) {
		return nil, nil
	})
	_, err = g.ReverseGeocode(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrGeocodingFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("empty")))
}

func TestGoogleGeocoder_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	g, _ := testGoogle(func(geocoder.Location) ([]geocoder.Address, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.ReverseGeocode(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrGeocodingFailed)
}

type countingGeocoder struct {
	calls int
	err   error
}

func (c *countingGeocoder) ReverseGeocode(_ context.Context, lat, _ float64) (Address, error) {
	c.calls++
	if c.err != nil {
		return Address{}, c.err
	}
	return Address{FormattedAddress: "place", City: "c"}, nil
}

func TestCachedGeocoder_HitsAndEviction(t *testing.T) {
	inner := &countingGeocoder{}
	c := NewCachedGeocoder(inner, 2)
	ctx := context.Background()

	_, _ = c.ReverseGeocode(ctx, 1, 1)
	_, _ = c.ReverseGeocode(ctx, 1.00001, 1) // same 4-decimal key
	assert.Equal(t, 1, inner.calls)

	_, _ = c.ReverseGeocode(ctx, 2, 2)
	_, _ = c.ReverseGeocode(ctx, 3, 3) // evicts (1,1)
	assert.Equal(t, 3, inner.calls)

	_, _ = c.ReverseGeocode(ctx, 1, 1)
	assert.Equal(t, 4, inner.calls)
}

func TestCachedGeocoder_DoesNotCacheFailures(t *testing.T) {
	inner := &countingGeocoder{err: ErrGeocodingFailed}
	c := NewCachedGeocoder(inner, 10)

	_, err := c.ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)
	_, err = c.ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
