package airquality

import (
	"context"
	"time"
)

// ProviderReading represents a single provider's normalized reading
// that can be aggregated into a Snapshot.
type ProviderReading struct {
	ProviderName  string
	Timestamp     time.Time
	AQI           int
	MainPollutant string
}

// Provider abstracts an air-quality data source (e.g. AirVisual, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (ProviderReading, error)
}

// Store is the contract the snapshot stores must satisfy.
type Store interface {
	SaveSnapshot(ctx context.Context, loc Location, snapshot Snapshot) error
	GetLatest(ctx context.Context, loc Location) (Snapshot, error)
	GetRange(ctx context.Context, loc Location, from, to time.Time) ([]Snapshot, error)
}
