package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/airquality/internal/observability"
)

var apiKeyOnce sync.Once

// GoogleGeocoder implements Geocoder with the Google Geocoding API.
type GoogleGeocoder struct {
	reverse func(geocoder.Location) ([]geocoder.Address, error)
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewGoogleGeocoder configures the process-wide API key of the geocoder
// package and returns a client. metrics may be nil.
func NewGoogleGeocoder(apiKey string, metrics *observability.Metrics, logger *slog.Logger) *GoogleGeocoder {
	apiKeyOnce.Do(func() {
		geocoder.ApiKey = apiKey
	})
	return &GoogleGeocoder{
		reverse: geocoder.GeocodingReverse,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode returns the first address Google has for the coordinates.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error) {
	type result struct {
		addrs []geocoder.Address
		err   error
	}

	// The geocoder package has no context support; run it aside so callers
	// are not held past their deadline.
	ch := make(chan result, 1)
	go func() {
		addrs, err := g.reverse(geocoder.Location{Latitude: lat, Longitude: lon})
		ch <- result{addrs: addrs, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		g.observe("error")
		return Address{}, fmt.Errorf("%w: %v", ErrGeocodingFailed, ctx.Err())
	case res = <-ch:
	}

	if res.err != nil {
		g.observe("error")
		g.logger.Warn("reverse geocoding failed", "lat", lat, "lon", lon, "error", res.err)
		return Address{}, fmt.Errorf("%w: %v", ErrGeocodingFailed, res.err)
	}
	if len(res.addrs) == 0 {
		g.observe("empty")
		return Address{}, fmt.Errorf("%w: no address found", ErrGeocodingFailed)
	}

	g.observe("success")
	a := res.addrs[0]
	return Address{
		Street:           a.Street,
		City:             a.City,
		State:            a.State,
		Country:          a.Country,
		FormattedAddress: a.FormattedAddress,
	}, nil
}

func (g *GoogleGeocoder) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	}
}
