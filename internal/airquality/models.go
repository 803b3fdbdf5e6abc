package airquality

import (
	"fmt"
	"time"
)

// Location is a coordinate pair for which air quality is tracked.
type Location struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Key returns a canonical string key for indexing this location in stores.
// Coordinates are rounded to four decimals (~11m).
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Snapshot is the normalized, aggregated air-quality view at a point in time.
type Snapshot struct {
	Location      Location  `json:"location"`
	Timestamp     time.Time `json:"timestamp"` // always UTC
	AQI           int       `json:"aqiUs"`
	MainPollutant string    `json:"mainPollutant,omitempty"`
	Severity      Severity  `json:"severity"`

	// Providers contributing to this snapshot.
	Providers []ProviderContribution `json:"providers,omitempty"`
}

// ProviderContribution describes data coming from a single provider used in aggregation.
type ProviderContribution struct {
	ProviderName string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"`
	AQI          int       `json:"aqiUs"`
}
