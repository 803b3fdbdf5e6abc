// Package geocode resolves coordinates into place names for display.
package geocode

import (
	"context"
	"errors"
)

// ErrGeocodingFailed is returned when the geocoding service is unavailable or
// has no address for the coordinates.
var ErrGeocodingFailed = errors.New("geocoding failed")

// Address is the place information shown next to the air-quality reading.
type Address struct {
	Street           string `json:"street,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	Country          string `json:"country,omitempty"`
	FormattedAddress string `json:"formattedAddress"`
}

// Geocoder converts coordinates to place details.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
}
